package otp

import (
	"net/url"
	"sort"
	"strings"
)

// Params is an ordered, possibly multi-valued set of query parameters.
type Params struct {
	keys   []string
	values map[string][]string
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string][]string)}
}

// Set replaces the values of key, keeping its original position if it
// was already present.
func (p *Params) Set(key string, values ...string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append([]string(nil), values...)
}

// Get returns the first value of key.
func (p *Params) Get(key string) string {
	if v := p.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// All returns every value of key.
func (p *Params) All(key string) []string {
	return append([]string(nil), p.values[key]...)
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Merge returns generated parameters overlaid with caller overrides. The
// caller wins: an override replaces the generated value in place, and keys
// the generator did not produce are appended in lexical order.
func (p *Params) Merge(overrides map[string]string) *Params {
	out := NewParams()
	for _, k := range p.keys {
		out.Set(k, p.values[k]...)
	}
	extra := make([]string, 0, len(overrides))
	for k := range overrides {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		out.Set(k, overrides[k])
	}
	return out
}

// Values converts to url.Values.
func (p *Params) Values() url.Values {
	v := make(url.Values, len(p.keys))
	for _, k := range p.keys {
		v[k] = append([]string(nil), p.values[k]...)
	}
	return v
}

// Encode renders the query string in insertion order.
func (p *Params) Encode() string {
	var b strings.Builder
	for _, k := range p.keys {
		for _, v := range p.values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
