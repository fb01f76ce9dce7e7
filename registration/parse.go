package registration

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"strconv"
	"strings"
	"unicode"
)

type command int

const (
	noCommand command = iota
	startCommand
	stopCommand
	helpCommand
	statusCommand
	changeCommand
	regionsCommand
	levelCommand
	hoursCommand
)

var commands = map[string]command{
	"start":       startCommand,
	"התחל":        startCommand,
	"הרשמה":       startCommand,
	"stop":        stopCommand,
	"unsubscribe": stopCommand,
	"עצור":        stopCommand,
	"הפסק":        stopCommand,
	"help":        helpCommand,
	"?":           helpCommand,
	"עזרה":        helpCommand,
	"status":      statusCommand,
	"סטטוס":       statusCommand,
	"מצב":         statusCommand,
	"change":      changeCommand,
	"שנה":         changeCommand,
	"שינוי":       changeCommand,
	"regions":     regionsCommand,
	"אזורים":      regionsCommand,
	"ערים":        regionsCommand,
	"עיר":         regionsCommand,
	"level":       levelCommand,
	"רמה":         levelCommand,
	"סף":          levelCommand,
	"hours":       hoursCommand,
	"שעות":        hoursCommand,
	"זמן":         hoursCommand,
}

var (
	backWords   = map[string]bool{"back": true, "חזור": true}
	allWords    = map[string]bool{"all": true, "הכל": true}
	alwaysWords = map[string]bool{"always": true, "תמיד": true, "כל השעות": true, "all": true, "הכל": true}
)

const drillDownChoice = "9"

// normalize folds compatibility forms (full-width digits, presentation
// forms), strips combining marks such as Hebrew vowel points and lowercases
// the text.
func normalize(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// parseCommand recognizes a command word, with or without a leading slash
// and a Telegram bot mention.
func parseCommand(text string) command {
	if !strings.HasPrefix(text, "/") {
		return commands[text]
	}
	word := strings.TrimPrefix(text, "/")
	if fields := strings.Fields(word); len(fields) > 0 {
		word = fields[0]
	}
	if i := strings.IndexByte(word, '@'); i > 0 {
		word = word[:i]
	}
	return commands[word]
}

func splitTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '،' || unicode.IsSpace(r)
	})
}

// parseIndices returns the valid 1-based menu positions in text. Invalid
// tokens are ignored.
func parseIndices(text string, size int) []int {
	var indices []int
	seen := make(map[int]bool)
	for _, token := range splitTokens(text) {
		n, err := strconv.Atoi(token)
		if err != nil || n < 1 || n > size || seen[n] {
			continue
		}
		seen[n] = true
		indices = append(indices, n-1)
	}
	return indices
}

func parseRegions(text string) []subscription.Region {
	if allWords[text] {
		return append([]subscription.Region(nil), subscription.Regions...)
	}
	var regions []subscription.Region
	for _, i := range parseIndices(text, len(subscription.Regions)) {
		regions = append(regions, subscription.Regions[i])
	}
	return regions
}

func parseRegion(text string) (subscription.Region, bool) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(subscription.Regions) {
		return "", false
	}
	return subscription.Regions[n-1], true
}

func parseLevel(text string) (level.Level, bool) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(level.All) {
		return level.Good, false
	}
	return level.All[n-1], true
}

func parseHours(text string) []subscription.Window {
	if alwaysWords[text] {
		return append([]subscription.Window(nil), subscription.Windows...)
	}
	var hours []subscription.Window
	for _, i := range parseIndices(text, len(subscription.Windows)) {
		hours = append(hours, subscription.Windows[i])
	}
	return hours
}
