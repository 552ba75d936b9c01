package locator

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
)

// FindPersonalAccountFile resolves the personal account workbook of an
// employee inside dir. A file matches when its stem starts with name and is
// either exactly name or ends with "-{account}". Modern workbooks win over
// legacy ones, then names sort lexically.
func FindPersonalAccountFile(dir, name, account string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.New(apperr.NotFound, "locate.personal_file", "directory not found: %s", dir)
		}
		return "", apperr.Wrap(apperr.IOFailure, "locate.personal_file", err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matchesAccountFile(e.Name(), name, account) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", apperr.New(apperr.NotFound, "locate.personal_file",
			"personal account file not found for %s with account number %s in %s", name, account, dir)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		mi, mj := isModern(matches[i]), isModern(matches[j])
		if mi != mj {
			return mi
		}
		return matches[i] < matches[j]
	})
	if len(matches) > 1 {
		slog.Warn("Multiple personal account files found, using the first", "name", name, "account", account, "files", matches)
	}
	path := filepath.Join(dir, matches[0])
	slog.Info("Found personal account file", "path", path)
	return path, nil
}

func matchesAccountFile(file, name, account string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".xlsx" && ext != ".xls" {
		return false
	}
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	if name == "" || !strings.HasPrefix(stem, name) {
		return false
	}
	if stem == name {
		return true
	}
	return account != "" && strings.HasSuffix(stem, "-"+account)
}

func isModern(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".xlsx")
}
