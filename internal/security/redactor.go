package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every secret aura would otherwise write out.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches config keys holding credentials, such as
// api_key, bearer_token or basic_pass.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|pass$|key|credential|dsn)`)

// envRefKey matches keys naming an environment variable (api_key_env,
// dsn_env). Their values are variable names, not secrets.
var envRefKey = regexp.MustCompile(`(?i)_env$`)

// rule is a pattern plus its replacement template. Templates may keep
// surrounding context, for example the scheme and user of a DSN.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor scrubs credentials from log records, audit entries and printed
// configuration. Known key formats are matched by pattern; secrets loaded
// at runtime (provider API keys, the gateway token, database passwords)
// are matched literally. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	rules    []rule
	literals []string
}

// NewRedactor returns a Redactor with the default rules and the given
// literal secrets.
func NewRedactor(literals ...string) *Redactor {
	r := &Redactor{rules: defaultRules()}
	for _, lit := range literals {
		r.AddLiteral(lit)
	}
	return r
}

// AddPattern redacts every match of pattern as a whole.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{re: pattern, repl: RedactPlaceholder})
}

// AddLiteral registers a secret value. Empty and already known values are
// ignored. Longer literals are applied first so a secret containing
// another is never half redacted.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.literals, secret) {
		return
	}
	r.literals = append(r.literals, secret)
	slices.SortStableFunc(r.literals, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	rules, literals := r.rules, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, ru := range rules {
		s = ru.re.ReplaceAllString(s, ru.repl)
	}
	return s
}

// RedactMap scrubs a decoded YAML document in place: string values under
// secret-looking keys are replaced outright, other strings go through
// Redact. Nested maps and lists are walked. It backs
// "aura config check --print".
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		secretKey := secretKeyPattern.MatchString(k) && !envRefKey.MatchString(k)
		if s, ok := v.(string); ok && secretKey && s != "" {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(item)
		}
	case string:
		return r.Redact(val)
	}
	return v
}

// DefaultPatterns returns the whole-match patterns applied by NewRedactor:
// bearer and basic Authorization values and the key formats of the
// OpenAI-compatible backends aura talks to.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
		regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/]{16,}={0,2}`),
		// OpenAI (sk-, sk-proj-) and OpenRouter (sk-or-v1-).
		regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
		// Groq.
		regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
		// Hugging Face inference endpoints.
		regexp.MustCompile(`hf_[a-zA-Z0-9]{30,}`),
	}
}

// urlPassword keeps scheme, user and host of a DSN or base URL and hides
// only the password.
var urlPassword = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.\-]*://[^/\s:@]+:)[^/\s@]+@`)

func defaultRules() []rule {
	var rules []rule
	for _, p := range DefaultPatterns() {
		rules = append(rules, rule{re: p, repl: RedactPlaceholder})
	}
	return append(rules, rule{re: urlPassword, repl: "${1}" + RedactPlaceholder + "@"})
}
