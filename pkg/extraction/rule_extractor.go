package extraction

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/civiclens/civiclens-go/pkg/models"
)

// eventKeywords maps each event type to its trigger keywords in Hindi,
// English and common Romanized Hindi. Matching is substring-based on the
// lower-cased post text; KnownEventTypes order decides ties.
var eventKeywords = map[models.EventType][]string{
	models.EventInauguration: {
		"उद्घाटन", "लोकार्पण", "शिलान्यास", "भूमिपूजन",
		"inauguration", "inaugurated", "foundation stone", "bhoomi pujan", "udghatan", "lokarpan",
	},
	models.EventRally: {
		"रैली", "रोड शो", "जनसभा", "आमसभा",
		"rally", "road show", "roadshow", "jansabha",
	},
	models.EventProtest: {
		"धरना", "प्रदर्शन", "विरोध", "आंदोलन", "चक्का जाम", "हड़ताल",
		"protest", "dharna", "agitation", "demonstration", "strike", "andolan",
	},
	models.EventMeeting: {
		"बैठक", "समीक्षा बैठक", "मुलाकात", "भेंट", "चर्चा",
		"meeting", "baithak", "review meeting", "discussion",
	},
	models.EventInspection: {
		"निरीक्षण", "दौरा", "जायजा", "अवलोकन",
		"inspection", "inspected", "site visit", "nirikshan", "daura",
	},
	models.EventGrievance: {
		"शिकायत", "समस्या", "ज्ञापन", "मांग पत्र", "जनदर्शन", "जन चौपाल",
		"grievance", "complaint", "shikayat", "memorandum", "jandarshan",
	},
	models.EventAnnouncement: {
		"घोषणा", "ऐलान", "शुभारंभ", "स्वीकृति", "मंजूरी",
		"announcement", "announced", "launch", "sanctioned", "ghoshna",
	},
}

// organization keywords: parties, departments and bodies that recur in the feed
var orgKeywords = []string{
	"भाजपा", "कांग्रेस", "आम आदमी पार्टी", "बसपा", "सपा",
	"नगर निगम", "नगर पालिका", "ग्राम पंचायत", "जिला पंचायत", "जनपद पंचायत",
	"जिला प्रशासन", "पुलिस", "स्वास्थ्य विभाग", "शिक्षा विभाग", "वन विभाग",
	"लोक निर्माण विभाग", "कृषि विभाग",
	"BJP", "Congress", "INC", "AAP", "BSP",
	"Municipal Corporation", "Gram Panchayat", "Zila Panchayat",
	"District Administration", "Police", "Health Department", "Education Department",
	"PWD", "Forest Department",
}

// scheme keywords: central and state programmes referenced by name
var schemeKeywords = []string{
	"प्रधानमंत्री आवास योजना", "आयुष्मान भारत", "उज्ज्वला योजना", "जल जीवन मिशन",
	"मनरेगा", "स्वच्छ भारत", "किसान सम्मान निधि", "लाडली बहना", "महतारी वंदन",
	"PM Awas Yojana", "PMAY", "Ayushman Bharat", "Ujjwala", "Jal Jeevan Mission",
	"MGNREGA", "NREGA", "Swachh Bharat", "Kisan Samman Nidhi",
}

var (
	// person names after an honorific or office title, Hindi or English
	hindiPersonPattern = regexp.MustCompile(`(?:श्री|श्रीमती|डॉ\.?|कु\.|कलेक्टर|विधायक|सांसद|मंत्री|महापौर|सरपंच)\s+((?:\p{Devanagari}+\s?){1,3})`)
	latinPersonPattern = regexp.MustCompile(`(?:Shri|Smt\.?|Dr\.?|Collector|MLA|MP|Minister|Mayor|Sarpanch)\s+((?:[A-Z][a-z]+\s?){1,3})`)
	handlePattern      = regexp.MustCompile(`@([A-Za-z0-9_]{3,})`)

	// location phrases after an administrative marker word
	hindiLocationPattern = regexp.MustCompile(`(?:ग्राम|गांव|गाँव|जिला|ज़िला|ब्लॉक|तहसील|वार्ड|नगर)\s+((?:\p{Devanagari}+\s?){1,2})`)
	latinLocationPattern = regexp.MustCompile(`(?i:village|district|block|tehsil|ward)\s+((?:[A-Z][a-z]+\s?){1,2})`)
	// trailing marker form: "रायगढ़ जिले में", "Raigarh district"
	hindiTrailingPattern = regexp.MustCompile(`((?:\p{Devanagari}+\s?){1,2})\s*(?:जिले|जिला|ब्लॉक|तहसील|ग्राम)(?:\s|$)`)
	latinTrailingPattern = regexp.MustCompile(`((?:[A-Z][a-z]+\s?){1,2})\s+(?i:distt\.?|district|block|tehsil)(?:\s|$|[.,])`)

	urlPattern = regexp.MustCompile(`https?://\S+`)
)

// particles and honorifics that greedy captures drag in around a name
var captureTrimWords = map[string]struct{}{
	"ने": {}, "को": {}, "से": {}, "का": {}, "की": {}, "के": {},
	"में": {}, "पर": {}, "एवं": {}, "और": {}, "जी": {},
	"श्री": {}, "श्रीमती": {}, "डॉ": {},
}

// trimCapture drops leading and trailing particle words from a regex capture
func trimCapture(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 {
		if _, trim := captureTrimWords[words[0]]; !trim {
			break
		}
		words = words[1:]
	}
	for len(words) > 0 {
		if _, trim := captureTrimWords[words[len(words)-1]]; !trim {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// RuleExtractor is the deterministic baseline voter: keyword dictionaries for
// event types, organizations and schemes, regular expressions for people and
// location phrases. It never abstains and never errors; when nothing matches
// it votes unknown.
type RuleExtractor struct{}

// NewRuleExtractor creates the deterministic extractor
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Source identifies this extractor's votes
func (e *RuleExtractor) Source() models.VoteSource {
	return models.SourceRule
}

// Extract produces a vote from keyword and pattern matching alone
func (e *RuleExtractor) Extract(ctx context.Context, post models.Post) models.ExtractionVote {
	start := time.Now()
	text := urlPattern.ReplaceAllString(post.Text, " ")
	lower := strings.ToLower(text)

	vote := models.ExtractionVote{
		Source:        models.SourceRule,
		EventType:     classify(lower),
		RawLocations:  extractLocations(text),
		People:        extractPeople(text),
		Organizations: matchKeywords(lower, orgKeywords),
		Schemes:       matchKeywords(lower, schemeKeywords),
	}
	vote.Latency = time.Since(start)
	return vote
}

// classify walks KnownEventTypes in fixed priority order and returns the
// first category with any keyword hit. Number of hits does not matter; the
// ordering alone decides multi-category posts, keeping classification
// deterministic.
func classify(lower string) models.EventType {
	for _, et := range models.KnownEventTypes {
		for _, kw := range eventKeywords[et] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return et
			}
		}
	}
	return models.EventUnknown
}

func matchKeywords(lower string, keywords []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func extractPeople(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	for _, pattern := range []*regexp.Regexp{hindiPersonPattern, latinPersonPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			add(trimCapture(m[1]))
		}
	}
	for _, m := range handlePattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}

func extractLocations(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(phrase string) {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			return
		}
		key := strings.ToLower(phrase)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, phrase)
	}

	for _, pattern := range []*regexp.Regexp{hindiLocationPattern, latinLocationPattern, hindiTrailingPattern, latinTrailingPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			add(trimCapture(m[1]))
		}
	}
	return out
}
