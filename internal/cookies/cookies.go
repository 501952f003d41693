// Package cookies inspects Netscape-format cookie files used to bypass
// YouTube access restrictions. The sync engine never consumes cookie values
// itself; it only verifies the file is usable before handing its path to the
// fetch tool, so misconfiguration is reported with an actionable hint instead
// of a cryptic tool failure mid-pass.
package cookies

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Cookie is one parsed Netscape cookie line.
type Cookie struct {
	Domain string
	Name   string
	Value  string
}

// relevantDomains are the domains the fetch tool needs cookies for.
var relevantDomains = []string{"youtube.com", "google.com"}

// ParseFile reads a Netscape cookies.txt file and returns the cookies
// belonging to YouTube-relevant domains.
func ParseFile(path string) ([]Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer file.Close()

	var cookies []Cookie
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		domain := parts[0]
		if !domainRelevant(domain) {
			continue
		}
		cookies = append(cookies, Cookie{Domain: domain, Name: parts[5], Value: parts[6]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	return cookies, nil
}

// Inspect validates a configured cookie file and returns the count of
// relevant cookies. A readable file with zero relevant cookies is not an
// error, but callers should warn: the tool will behave as if unauthenticated.
func Inspect(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("cookies enabled but no cookie file configured")
	}
	cookies, err := ParseFile(path)
	if err != nil {
		return 0, err
	}
	return len(cookies), nil
}

func domainRelevant(domain string) bool {
	for _, candidate := range relevantDomains {
		if strings.Contains(domain, candidate) {
			return true
		}
	}
	return false
}
