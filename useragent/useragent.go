// Package useragent assembles the User-Agent header sent with every
// request to the master. The header is a chain of product tokens, most
// significant first, e.g.
//
//	my-scheduler/2.1.0 mesos-stream/0.1.0 go/go1.24.0
package useragent

import (
	"runtime"
	"strings"
)

// Version is the library version reported in the default entry.
const Version = "0.1.0"

// Entry is one product token in a User-Agent chain.
type Entry struct {
	Name    string
	Version string
	Details string
}

// String renders the entry as "name/version" or "name/version (details)".
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if e.Version != "" {
		b.WriteByte('/')
		b.WriteString(e.Version)
	}
	if e.Details != "" {
		b.WriteString(" (")
		b.WriteString(e.Details)
		b.WriteByte(')')
	}
	return b.String()
}

// Chain joins entries into a User-Agent header value.
func Chain(entries ...Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		parts = append(parts, e.String())
	}
	return strings.Join(parts, " ")
}

// Library returns the entry identifying this client library.
func Library() Entry {
	return Entry{Name: "mesos-stream", Version: Version}
}

// GoRuntime returns the entry identifying the Go runtime in use.
func GoRuntime() Entry {
	return Entry{Name: "go", Version: runtime.Version()}
}

// Default returns the User-Agent value used when the caller supplies no
// application entry of its own.
func Default() string {
	return Chain(Library(), GoRuntime())
}
