package utils

import (
	"net/url"
	"strings"
)

// NormalizeWebsite reduces a website identifier to its lower-case host name.
// Accepted inputs are bare hosts ("Example.com"), hosts with a port or path
// ("example.com:8443/login") and full URLs ("https://www.example.com/").
// A leading "www." is kept: it is a distinct host as far as cookies go.
// An empty string is returned when no host can be derived.
func NormalizeWebsite(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}

	if !strings.Contains(website, "://") {
		website = "http://" + website
	}

	u, err := url.Parse(website)
	if err != nil {
		return ""
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if strings.ContainsAny(host, " \t") {
		return ""
	}
	return host
}
