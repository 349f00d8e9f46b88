// Package config loads nvsh settings.
//
// Sources are layered, lowest precedence first: built-in defaults, the
// nvsh.yaml config file, NVSH_* environment variables, and command-line
// flags that were set explicitly.
package config
