package upload

import (
	"strings"

	"github.com/trungha/formgate/internal/core/domain"
)

// acceptMatches reports whether a file passes the accept list.
//
// accept is a comma-separated list of patterns; each entry is either a
// MIME pattern ("type/subtype" or "type/*") matched against the file's
// declared content type, or an extension pattern (".ext") matched
// against the file name. An empty list accepts everything.
func acceptMatches(accept string, file domain.FileMeta) bool {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return true
	}

	fileType := strings.ToLower(strings.TrimSpace(file.Type))
	fileName := strings.ToLower(file.Name)

	for _, entry := range strings.Split(accept, ",") {
		pattern := strings.ToLower(strings.TrimSpace(entry))
		if pattern == "" {
			continue
		}

		if strings.HasPrefix(pattern, ".") {
			if strings.HasSuffix(fileName, pattern) {
				return true
			}
			continue
		}

		if strings.HasSuffix(pattern, "/*") {
			if strings.HasPrefix(fileType, strings.TrimSuffix(pattern, "*")) {
				return true
			}
			continue
		}

		if fileType == pattern {
			return true
		}
	}
	return false
}
