package binance

import (
	"net/url"
	"strings"
)

// Params is an insertion-ordered parameter list. The exchange verifies
// the signature against the exact byte sequence it receives, and
// url.Values.Encode re-sorts keys alphabetically, so the canonical
// string is built here instead: keys encode in the order they were
// added.
type Params struct {
	pairs []paramPair
}

type paramPair struct {
	key   string
	value string
}

// NewParams creates an empty parameter list.
func NewParams() *Params {
	return &Params{}
}

// Add appends a key/value pair, preserving insertion order.
func (p *Params) Add(key, value string) {
	p.pairs = append(p.pairs, paramPair{key: key, value: value})
}

// Set replaces the value of an existing key in place, keeping its
// position, or appends the pair if the key is absent.
func (p *Params) Set(key, value string) {
	for i := range p.pairs {
		if p.pairs[i].key == key {
			p.pairs[i].value = value
			return
		}
	}
	p.Add(key, value)
}

// Get returns the value for the first occurrence of key, or "".
func (p *Params) Get(key string) string {
	for _, kv := range p.pairs {
		if kv.key == key {
			return kv.value
		}
	}
	return ""
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	for _, kv := range p.pairs {
		if kv.key == key {
			return true
		}
	}
	return false
}

// Len returns the number of pairs.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pairs)
}

// Encode renders the canonical key=value&... string in insertion order,
// form-escaped. This exact string is the byte input to signing.
func (p *Params) Encode() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.value))
	}
	return b.String()
}

// EncodeMasked renders the pairs for logging with the signature value
// replaced by the mask token.
func (p *Params) EncodeMasked() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.key))
		b.WriteByte('=')
		if kv.key == signatureParam {
			b.WriteString(maskToken)
		} else {
			b.WriteString(url.QueryEscape(kv.value))
		}
	}
	return b.String()
}
