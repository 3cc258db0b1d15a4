package store

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// Decompress inflates a DATA payload according to the object flags byte. XZ
// is a recognized but unimplemented codec (spec §9): a file declaring it in
// incompatible-flags would already have failed DecodeHeader, and an
// individual object claiming it without the bitmap set is refused here with
// UnsupportedFeature.
func Decompress(flags uint8, payload []byte) ([]byte, error) {
	switch {
	case flags&ObjectFlagCompressedXZ != 0:
		return nil, logerrors.NewError(logerrors.ErrCodeUnsupportedFeature, "XZ decompression not implemented").
			WithComponent("store").WithOperation("Decompress")
	case flags&ObjectFlagCompressedLZ4 != 0:
		return decompressLZ4(payload)
	case flags&ObjectFlagCompressedZSTD != 0:
		return decompressZSTD(payload)
	default:
		return payload, nil
	}
}

func decompressZSTD(payload []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "zstd decoder init failed").WithCause(err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "zstd payload decode failed").WithCause(err)
	}
	return out, nil
}

func decompressLZ4(payload []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(payload))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "lz4 payload decode failed").WithCause(err)
	}
	return out, nil
}

// maybeCompress compresses payload with ZSTD when it exceeds the file's
// compress threshold, returning the object flags to store and the bytes to
// write. A file has no codec setting of its own; LZ4 is only used by callers
// that request it explicitly via CompressWithCodec.
func maybeCompress(f *File, payload []byte) (flags uint8, out []byte, err error) {
	if f.compressThreshold == 0 || uint64(len(payload)) <= f.compressThreshold {
		return 0, payload, nil
	}
	return CompressWithCodec(ObjectFlagCompressedZSTD, payload)
}

// CompressWithCodec compresses payload with the requested codec, returning
// the flags byte to store alongside it.
func CompressWithCodec(codec uint8, payload []byte) (flags uint8, out []byte, err error) {
	switch codec {
	case ObjectFlagCompressedZSTD:
		enc, eerr := zstd.NewWriter(nil)
		if eerr != nil {
			return 0, nil, logerrors.NewError(logerrors.ErrCodeIO, "zstd encoder init failed").WithCause(eerr)
		}
		defer enc.Close()
		compressed := enc.EncodeAll(payload, nil)
		return ObjectFlagCompressedZSTD, compressed, nil
	case ObjectFlagCompressedLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, werr := w.Write(payload); werr != nil {
			return 0, nil, logerrors.NewError(logerrors.ErrCodeIO, "lz4 encode failed").WithCause(werr)
		}
		if cerr := w.Close(); cerr != nil {
			return 0, nil, logerrors.NewError(logerrors.ErrCodeIO, "lz4 encode failed").WithCause(cerr)
		}
		return ObjectFlagCompressedLZ4, buf.Bytes(), nil
	default:
		return 0, payload, nil
	}
}
