// Package logbuf holds the process-wide ring buffer of status log lines read
// by the HTTP facade. It is diagnostic only: bounded, in-memory, no
// durability.
package logbuf
