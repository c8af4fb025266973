package models

import (
	"net/url"
	"sort"
	"strings"
)

// AuParam is one plugin parameter that identifies an archival unit.
type AuParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Au is an archival unit: a collection of deposits that the daemons
// preserve and poll on as a unit.
type Au struct {
	Id                int64     `json:"id"`
	PlnId             int64     `json:"pln_id"`
	ContentProviderId int64     `json:"content_provider_id"`
	PluginIdentifier  string    `json:"plugin_identifier"`
	Params            []AuParam `json:"params"`
	Comment           string    `json:"comment"`

	// Auid is the identifier the daemons use for this AU. If it's
	// empty, LockssAuid computes it from the plugin and params.
	Auid string `json:"auid"`
}

// LockssAuid returns the AUID for this AU.
func (au *Au) LockssAuid() string {
	if au.Auid != "" {
		return au.Auid
	}
	return ComputeAuid(au.PluginIdentifier, au.Params)
}

// ComputeAuid builds a LOCKSS AUID from a plugin identifier and its
// definitional parameters. The plugin id has its dots replaced with
// pipes, and each parameter is appended as &key~value, sorted by key,
// with keys and values encoded the way the daemon encodes them.
//
// For example, plugin "ca.sfu.lib.plugin.Example" with base_url
// http://example.com/ becomes
// "ca|sfu|lib|plugin|Example&base_url~http%3A%2F%2Fexample%2Ecom%2F".
func ComputeAuid(pluginIdentifier string, params []AuParam) string {
	sorted := make([]AuParam, len(params))
	copy(sorted, params)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	auid := strings.Replace(pluginIdentifier, ".", "|", -1)
	for _, param := range sorted {
		auid += "&" + encodeAuidComponent(param.Key) + "~" + encodeAuidComponent(param.Value)
	}
	return auid
}

// The daemon uses Java's URLEncoder and then escapes dots, tildes
// and asterisks, which URLEncoder leaves alone.
func encodeAuidComponent(value string) string {
	encoded := url.QueryEscape(value)
	encoded = strings.Replace(encoded, ".", "%2E", -1)
	encoded = strings.Replace(encoded, "~", "%7E", -1)
	encoded = strings.Replace(encoded, "*", "%2A", -1)
	return encoded
}
