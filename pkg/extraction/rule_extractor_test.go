package extraction

import (
	"context"
	"testing"

	"github.com/civiclens/civiclens-go/pkg/models"
)

func extract(t *testing.T, text string) models.ExtractionVote {
	t.Helper()
	e := NewRuleExtractor()
	vote := e.Extract(context.Background(), models.Post{ID: "p1", Text: text})
	if vote.Err != nil {
		t.Fatalf("rule extractor must never error, got %v", vote.Err)
	}
	if vote.Source != models.SourceRule {
		t.Fatalf("vote source = %s, want rule", vote.Source)
	}
	return vote
}

func TestClassifyEventTypes(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.EventType
	}{
		{"hindi inauguration", "आज ग्राम पुसौर में सड़क का उद्घाटन हुआ", models.EventInauguration},
		{"hindi rally", "कल रायगढ़ में विशाल रैली निकाली गई", models.EventRally},
		{"hindi protest", "किसानों ने कलेक्ट्रेट के सामने धरना दिया", models.EventProtest},
		{"hindi meeting", "जिला पंचायत की समीक्षा बैठक संपन्न हुई", models.EventMeeting},
		{"hindi inspection", "कलेक्टर ने अस्पताल का निरीक्षण किया", models.EventInspection},
		{"hindi grievance", "ग्रामीणों ने पानी की समस्या को लेकर ज्ञापन सौंपा", models.EventGrievance},
		{"hindi announcement", "मुख्यमंत्री ने नई योजना की घोषणा की", models.EventAnnouncement},
		{"english inauguration", "Collector inaugurated the new school building today", models.EventInauguration},
		{"romanized protest", "Kisaano ka dharna jaari hai", models.EventProtest},
		{"nothing matches", "आज मौसम बहुत अच्छा है", models.EventUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extract(t, tc.text).EventType; got != tc.want {
				t.Errorf("classify(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyPriorityOrderDecidesMultiCategory(t *testing.T) {
	// both inauguration and rally vocabulary present, rally mentioned more;
	// the earlier category in the fixed order still wins
	text := "उद्घाटन के बाद रैली निकाली गई, road show और जनसभा भी हुई"
	if got := extract(t, text).EventType; got != models.EventInauguration {
		t.Errorf("classify = %s, want inauguration (first in priority order)", got)
	}

	// meeting and grievance both present: meeting ranks earlier
	text = "बैठक में ग्रामीणों ने शिकायत दर्ज कराई"
	if got := extract(t, text).EventType; got != models.EventMeeting {
		t.Errorf("classify = %s, want meeting (first in priority order)", got)
	}
}

func TestExtractPeople(t *testing.T) {
	vote := extract(t, "कलेक्टर श्री रामलाल वर्मा ने ग्राम पुसौर का दौरा किया")
	if len(vote.People) == 0 {
		t.Fatal("expected at least one person")
	}
	found := false
	for _, p := range vote.People {
		if p == "रामलाल वर्मा" {
			found = true
		}
	}
	if !found {
		t.Errorf("people = %v, want रामलाल वर्मा", vote.People)
	}
}

func TestExtractHandles(t *testing.T) {
	vote := extract(t, "Meeting held with @bhupeshbaghel at district office")
	found := false
	for _, p := range vote.People {
		if p == "bhupeshbaghel" {
			found = true
		}
	}
	if !found {
		t.Errorf("people = %v, want twitter handle", vote.People)
	}
}

func TestExtractLocations(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"hindi village marker", "ग्राम पुसौर में बैठक हुई", "पुसौर"},
		{"hindi trailing district", "रायगढ़ जिले में धरना", "रायगढ़"},
		{"english trailing distt", "Protest held in Raigarh Distt today", "Raigarh"},
		{"english village", "Meeting at village Kondatarai concluded", "Kondatarai"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vote := extract(t, tc.text)
			found := false
			for _, loc := range vote.RawLocations {
				if loc == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("locations = %v, want %q", vote.RawLocations, tc.want)
			}
		})
	}
}

func TestExtractOrganizationsAndSchemes(t *testing.T) {
	vote := extract(t, "जिला प्रशासन ने प्रधानमंत्री आवास योजना के हितग्राहियों की बैठक ली")
	if len(vote.Organizations) == 0 {
		t.Errorf("expected जिला प्रशासन among organizations, got %v", vote.Organizations)
	}
	if len(vote.Schemes) == 0 {
		t.Errorf("expected प्रधानमंत्री आवास योजना among schemes, got %v", vote.Schemes)
	}
}

func TestURLsIgnored(t *testing.T) {
	vote := extract(t, "https://example.com/village-raigarh-news nothing civic here")
	if len(vote.RawLocations) != 0 {
		t.Errorf("locations from URL text = %v, want none", vote.RawLocations)
	}
}
