package cipher

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// transformStep is a single signature transform: rev (reverse), spl (drop
// the first N runes) or swp (swap rune 0 with rune N%len).
type transformStep struct {
	op  string
	arg int
}

var (
	parseMu    sync.Mutex
	parseCache = make(map[string][]transformStep)
)

var (
	declFuncRegex   = regexp.MustCompile(`function\s*[a-zA-Z0-9$_]*\s*\(\s*([a-zA-Z0-9$_]+)\s*\)\s*\{`)
	objectFuncRegex = regexp.MustCompile(`([a-zA-Z0-9$_]+)\s*:\s*function\s*\(\s*a\s*(?:,\s*b\s*)?\)\s*\{([^{}]*)\}`)
)

func cacheKeyForJS(playerJS string) string {
	h := sha1.Sum([]byte(playerJS))
	return hex.EncodeToString(h[:])
}

// tryRegexDecipher parses the decipher routine out of player.js and applies
// its transform chain without executing JavaScript. Parse results are cached
// per script body.
func tryRegexDecipher(playerJS string, signature string) (string, bool) {
	key := cacheKeyForJS(playerJS)

	parseMu.Lock()
	steps, ok := parseCache[key]
	parseMu.Unlock()

	if !ok {
		steps = parseTransformSteps(playerJS)
		parseMu.Lock()
		parseCache[key] = steps
		parseMu.Unlock()
	}

	if len(steps) == 0 {
		return "", false
	}
	return applyTransformSteps(signature, steps), true
}

func applyTransformSteps(signature string, steps []transformStep) string {
	r := []rune(signature)
	for _, st := range steps {
		switch st.op {
		case "rev":
			r = regexReverse(r)
		case "spl":
			r = regexSplice(r, st.arg)
		case "swp":
			r = regexSwap(r, st.arg)
		}
	}
	return string(r)
}

// parseTransformSteps locates the decipher function (the one that splits the
// signature into runes and joins it back) and extracts its transform chain,
// either from inline calls on the parameter or from a transform object.
func parseTransformSteps(playerJS string) []transformStep {
	param, body := findDecipherBody(playerJS)
	if body == "" {
		return nil
	}

	if steps := parseInlineCalls(body, param); len(steps) > 0 {
		return steps
	}

	obj := findTransformObjectName(body, param)
	if obj == "" {
		return nil
	}
	objBody := extractObjectLiteral(playerJS, obj)
	if objBody == "" {
		return nil
	}
	nameToOp := classifyTransforms(objBody)
	if len(nameToOp) == 0 {
		return nil
	}

	callRegex := regexp.MustCompile(regexp.QuoteMeta(obj) + `\.([a-zA-Z0-9$_]+)\(\s*` + regexp.QuoteMeta(param) + `\s*(?:,\s*(\d+)\s*)?\)`)
	var steps []transformStep
	for _, c := range callRegex.FindAllStringSubmatch(body, -1) {
		op, known := nameToOp[c[1]]
		if !known {
			continue
		}
		arg := 0
		if c[2] != "" {
			if v, err := strconv.Atoi(c[2]); err == nil {
				arg = v
			}
		}
		steps = append(steps, transformStep{op: op, arg: arg})
	}
	return steps
}

// findDecipherBody scans all single-parameter function declarations and
// returns the parameter and body of the one matching the split/join shape.
func findDecipherBody(playerJS string) (param string, body string) {
	for _, loc := range declFuncRegex.FindAllStringSubmatchIndex(playerJS, -1) {
		p := playerJS[loc[2]:loc[3]]
		b := balancedBlock(playerJS, loc[1]-1)
		if b == "" {
			continue
		}
		if strings.Contains(b, p+`.split("")`) && strings.Contains(b, `return `+p+`.join("")`) {
			return p, b
		}
	}
	return "", ""
}

// balancedBlock returns the contents of the brace block opening at openIdx,
// or "" when the braces never balance.
func balancedBlock(s string, openIdx int) string {
	if openIdx < 0 || openIdx >= len(s) || s[openIdx] != '{' {
		return ""
	}
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[openIdx+1 : i]
			}
		}
	}
	return ""
}

// parseInlineCalls handles the minified form where transforms are called
// directly on the signature array: a.reverse();a.splice(0,26);a.reverse().
func parseInlineCalls(body string, param string) []transformStep {
	inlineRegex := regexp.MustCompile(regexp.QuoteMeta(param) + `\.(reverse|splice)\(\s*(?:0\s*,\s*)?(\d*)\s*\)`)
	var steps []transformStep
	for _, m := range inlineRegex.FindAllStringSubmatch(body, -1) {
		switch m[1] {
		case "reverse":
			steps = append(steps, transformStep{op: "rev"})
		case "splice":
			if n, err := strconv.Atoi(m[2]); err == nil {
				steps = append(steps, transformStep{op: "spl", arg: n})
			}
		}
	}
	return steps
}

func findTransformObjectName(body string, param string) string {
	objRegex := regexp.MustCompile(`([a-zA-Z0-9$_]+)\.[a-zA-Z0-9$_]+\(\s*` + regexp.QuoteMeta(param) + `\s*(?:,\s*\d+\s*)?\)`)
	m := objRegex.FindStringSubmatch(body)
	if len(m) < 2 || m[1] == param {
		return ""
	}
	return m[1]
}

func extractObjectLiteral(playerJS string, obj string) string {
	declRegex := regexp.MustCompile(`(?:var|let|const)\s+` + regexp.QuoteMeta(obj) + `\s*=\s*\{`)
	loc := declRegex.FindStringIndex(playerJS)
	if loc == nil {
		return ""
	}
	return balancedBlock(playerJS, loc[1]-1)
}

// classifyTransforms maps the transform object's member names to operations
// by the shape of their bodies.
func classifyTransforms(objBody string) map[string]string {
	nameToOp := make(map[string]string)
	for _, fm := range objectFuncRegex.FindAllStringSubmatch(objBody, -1) {
		fname, fbody := fm[1], fm[2]
		switch {
		case strings.Contains(fbody, ".reverse()"):
			nameToOp[fname] = "rev"
		case strings.Contains(fbody, ".splice("):
			nameToOp[fname] = "spl"
		case strings.Contains(fbody, "a[0]=a[") || strings.Contains(fbody, "a[0] = a["):
			nameToOp[fname] = "swp"
		}
	}
	return nameToOp
}

var (
	fallbackSpliceRegex = regexp.MustCompile(`splice\(\s*(\d+)\s*\)`)
)

// tryPatternFallback is the last resort when neither the parser nor otto
// could handle player.js. It guesses a single transform from keywords.
func tryPatternFallback(playerJS string, signature string) (string, bool) {
	if strings.Contains(playerJS, "reverse") && strings.Contains(playerJS, "join") {
		return string(regexReverse([]rune(signature))), true
	}
	if m := fallbackSpliceRegex.FindStringSubmatch(playerJS); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return string(regexSplice([]rune(signature), n)), true
		}
	}
	return "", false
}

func regexReverse(s []rune) []rune {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

func regexSplice(s []rune, n int) []rune {
	if n < 0 || n > len(s) {
		return s
	}
	return s[n:]
}

func regexSwap(s []rune, n int) []rune {
	if len(s) <= 1 {
		return s
	}
	n = n % len(s)
	if n < 0 {
		n += len(s)
	}
	s[0], s[n] = s[n], s[0]
	return s
}
