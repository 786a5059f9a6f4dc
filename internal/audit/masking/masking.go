package masking

import "strings"

const maskToken = "****"

// Field masks value according to the kind of data its key names.
// Payment references keep their provider prefix and last four characters,
// emails keep the first letter and the domain, anything else is redacted.
func Field(key string, value any) any {
	switch cast := value.(type) {
	case string:
		return maskString(strings.ToLower(strings.TrimSpace(key)), cast)
	case map[string]any:
		return Fields(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, Field(key, item))
		}
		return out
	case nil:
		return nil
	default:
		return maskToken
	}
}

// Fields returns a masked copy of input, dropping blank keys.
func Fields(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = Field(trimmedKey, value)
	}
	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskString(key, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	switch {
	case strings.HasSuffix(key, "email"):
		return MaskEmail(value)
	case strings.HasSuffix(key, "_ref"):
		return MaskReference(value)
	default:
		return maskToken
	}
}

// MaskReference hides a provider reference such as "hosted_01J9Z..." while
// keeping enough to match it against provider dashboards.
func MaskReference(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	prefix, remainder := "", value
	if idx := strings.LastIndex(value, "_"); idx != -1 && idx < len(value)-1 {
		prefix, remainder = value[:idx+1], value[idx+1:]
	}
	if len(remainder) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-4:]
}

func MaskEmail(value string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(value), "@")
	if !ok || local == "" || domain == "" {
		return maskToken
	}
	return local[:1] + maskToken + "@" + domain
}
