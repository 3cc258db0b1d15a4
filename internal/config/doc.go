/*
Package config provides the engine's configuration: a YAML-file-plus-
environment-variable layer over spec §6.3's Open options, §4.3's space
accounting, and the resilience/monitoring settings around them.

# Loading order

	config := config.NewDefault()
	if err := config.LoadFromFile("/etc/logarc/config.yaml"); err != nil {
		log.Fatal(err)
	}
	if err := config.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := config.Validate(); err != nil {
		log.Fatal(err)
	}

LoadFromFile and LoadFromEnv each overwrite whatever fields they recognize;
call them in this order so LOGARC_* environment variables win over the file,
and NewDefault's built-ins are the fallback for anything neither sets.

# Sections

Global: log level/file, metrics/health/profile ports, runtime and persist
directories.

Journal: per-file behavior. Compress threshold, seal-on-close and
strict-order rejection are passed through to Open's Options; array
compaction, window size and cache slots are loaded but are not passed to
any file.

Space: directory-wide accounting and vacuum triggers — min/max use, keep-free
floor, max file age/size, max file count, recompute interval.

Resilience: the retry policy (spec §4.2's rotate-and-retry loop) and the
circuit breaker that trips after repeated rotate-class failures (spec §4.3).

Monitoring: Prometheus metrics, health check interval/timeout, and structured
log format/sampling.

Features: prefetch, chain cache, boot grouping, concurrent open, advisory
file locks.

# Environment variables

All variables are prefixed LOGARC_ and named after the field they set, e.g.
LOGARC_LOG_LEVEL, LOGARC_MAX_USE, LOGARC_STRICT_ORDER, LOGARC_N_MAX_FILES.
See LoadFromEnv for the full set; unset variables leave the existing value
(file or default) untouched.
*/
package config
