// Package env describes the fixed set of database environments the proxy can
// route to and resolves their connection settings from the process
// environment.
package env

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Name is one of the enumerated deployment environments.
type Name string

const (
	Dev Name = "dev"
	GQC Name = "gqc"
	UAT Name = "uat"
	PRD Name = "prd"
)

// Default is the environment used when a request does not name one.
const Default = GQC

// DefaultPort is used when {TAG}_DB_PORT is absent or not a valid port.
const DefaultPort = 3306

var all = []Name{Dev, GQC, UAT, PRD}

// All returns every known environment in a stable order.
func All() []Name {
	out := make([]Name, len(all))
	copy(out, all)
	return out
}

// Parse maps s onto a known environment. Matching is exact: "GQC" is not "gqc".
func Parse(s string) (Name, bool) {
	for _, n := range all {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Tag is the uppercase prefix used for the environment's variables.
func (n Name) Tag() string { return strings.ToUpper(string(n)) }

func (n Name) String() string { return string(n) }

// Driver selects the database/sql driver for an environment.
type Driver string

const (
	MySQL    Driver = "mysql"
	Postgres Driver = "postgres"
)

func (d Driver) valid() bool { return d == MySQL || d == Postgres }

// TLSPolicy describes how connections to an environment are secured.
type TLSPolicy int

const (
	// TLSSkipVerify requires TLS but does not verify the server certificate.
	// Several environments present self-signed certificates; keep this until
	// every server has a verifiable chain.
	TLSSkipVerify TLSPolicy = iota
	// TLSVerify requires TLS with full certificate and host verification.
	TLSVerify
	// TLSDisable connects in plain text. Only for local databases.
	TLSDisable

	tlsInvalid TLSPolicy = -1
)

var tlsNames = map[TLSPolicy]string{
	TLSSkipVerify: "skip-verify",
	TLSVerify:     "verify-full",
	TLSDisable:    "disable",
}

func (p TLSPolicy) String() string {
	if s, ok := tlsNames[p]; ok {
		return s
	}
	return "invalid"
}

// ParseTLSPolicy maps {TAG}_DB_TLS values onto a policy. Empty means
// TLSSkipVerify.
func ParseTLSPolicy(s string) (TLSPolicy, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TLSSkipVerify, true
	}
	for p, name := range tlsNames {
		if name == s {
			return p, true
		}
	}
	return tlsInvalid, false
}

// Config holds the connection settings for one environment.
type Config struct {
	Name     Name
	Driver   Driver
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      TLSPolicy
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Redacted returns a copy of c safe for printing.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "****"
	}
	return c
}

func (c Config) missing() []string {
	var out []string
	if c.Host == "" {
		out = append(out, "host")
	}
	if c.User == "" {
		out = append(out, "user")
	}
	if c.Password == "" {
		out = append(out, "password")
	}
	if c.Database == "" {
		out = append(out, "database")
	}
	if !c.Driver.valid() {
		out = append(out, fmt.Sprintf("driver(%q)", string(c.Driver)))
	}
	if _, ok := tlsNames[c.TLS]; !ok {
		out = append(out, "tls")
	}
	return out
}

// LookupFunc returns the value of a configuration key, or "" when unset.
type LookupFunc func(key string) string

// Resolve builds the Config for n from lookup. Missing values are left empty;
// Validate reports them.
func Resolve(n Name, lookup LookupFunc) Config {
	get := func(suffix string) string {
		return strings.TrimSpace(lookup(n.Tag() + "_DB_" + suffix))
	}

	port := DefaultPort
	if p, err := strconv.Atoi(get("PORT")); err == nil && p > 0 && p <= 65535 {
		port = p
	}

	driver := MySQL
	if d := get("DRIVER"); d != "" {
		driver = Driver(strings.ToLower(d))
	}

	tls, _ := ParseTLSPolicy(get("TLS"))

	return Config{
		Name:     n,
		Driver:   driver,
		Host:     get("HOST"),
		Port:     port,
		User:     get("USER"),
		Password: lookup(n.Tag() + "_DB_PASSWORD"),
		Database: get("NAME"),
		TLS:      tls,
	}
}

// Configs maps every known environment to its resolved settings.
type Configs map[Name]Config

// ResolveAll resolves every known environment.
func ResolveAll(lookup LookupFunc) Configs {
	out := make(Configs, len(all))
	for _, n := range all {
		out[n] = Resolve(n, lookup)
	}
	return out
}
