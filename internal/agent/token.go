package agent

import (
	"os"
	"strings"
)

// The identity token is the only state an agent persists between runs.

func loadToken(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

func saveToken(path, token string) error {
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}
