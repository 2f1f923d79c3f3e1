// ABOUTME: Instance name filters for gateway searches
// ABOUTME: Shell-style patterns as accepted by path.Match
package server

import "path"

func matchName(pattern, name string) bool {
	ok, _ := path.Match(pattern, name)
	return ok
}

func validPattern(pattern string) bool {
	_, err := path.Match(pattern, "")
	return err == nil
}
