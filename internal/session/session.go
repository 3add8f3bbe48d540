// Package session maintains the rolling behavioral profile that personalizes
// adjudication feedback across a campaign. The one invariant everything here
// protects: the profile is a pure, deterministic function of the accumulated
// quest history. Derived fields are always rebuilt from the full history,
// never patched individually.
package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strollia/questhunt/internal/questhunt"
)

// NewProfile returns the empty profile for a freshly started campaign.
func NewProfile() questhunt.SessionProfile {
	return questhunt.SessionProfile{
		Voice: questhunt.VoiceState{
			NarrativeTone:      "balanced",
			EncouragementLevel: questhunt.EncouragementMedium,
			ReferenceStyle:     "brief",
		},
	}
}

// Record folds one attempt summary into the profile and returns the rebuilt
// profile. The input profile is not mutated. A later summary for a quest
// already in the history replaces it — only the final outcome per quest
// matters for behavioral inference.
func Record(p questhunt.SessionProfile, attempt questhunt.QuestAttemptSummary) questhunt.SessionProfile {
	history := upsert(p.QuestHistory, attempt)
	next := rebuild(history)

	// Voice continuity: callback phrases and the nickname only ever grow;
	// tone and encouragement were already recomputed fresh in rebuild.
	next.Voice.CallbackPhrases = growCallbacks(p.Voice.CallbackPhrases, next)
	next.Voice.EarnedNickname = p.Voice.EarnedNickname
	if next.Voice.EarnedNickname == "" {
		next.Voice.EarnedNickname = nickname(next)
	}
	return next
}

func upsert(history []questhunt.QuestAttemptSummary, attempt questhunt.QuestAttemptSummary) []questhunt.QuestAttemptSummary {
	out := make([]questhunt.QuestAttemptSummary, len(history))
	copy(out, history)
	for i, h := range out {
		if h.QuestID == attempt.QuestID {
			out[i] = attempt
			return out
		}
	}
	return append(out, attempt)
}

// rebuild derives every aggregate from scratch.
func rebuild(history []questhunt.QuestAttemptSummary) questhunt.SessionProfile {
	p := questhunt.SessionProfile{QuestHistory: history}
	if len(history) == 0 {
		return NewProfile()
	}

	successes := 0
	totalAttempts := 0
	for _, h := range history {
		if h.Accepted {
			successes++
		}
		totalAttempts += h.Attempts
	}
	p.SuccessRate = float64(successes) / float64(len(history))
	p.AverageAttemptsPerQuest = float64(totalAttempts) / float64(len(history))
	p.StrongestMediaType, p.WeakestMediaType = mediaExtremes(history)
	p.CommonIssueTags = commonIssueTags(history)
	p.Voice = voiceFor(p)
	return p
}

// mediaExtremes computes per-type success ratios. A type is only callable
// "weakest" when its ratio is strictly below 1.0 and more than one type has
// data — a single-type campaign carries no contrast signal.
func mediaExtremes(history []questhunt.QuestAttemptSummary) (strongest, weakest questhunt.MediaType) {
	type stat struct{ ok, total int }
	stats := map[questhunt.MediaType]*stat{}
	for _, h := range history {
		s := stats[h.MediaType]
		if s == nil {
			s = &stat{}
			stats[h.MediaType] = s
		}
		s.total++
		if h.Accepted {
			s.ok++
		}
	}

	types := make([]questhunt.MediaType, 0, len(stats))
	for t := range stats {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	bestRatio, worstRatio := -1.0, 2.0
	for _, t := range types {
		s := stats[t]
		ratio := float64(s.ok) / float64(s.total)
		if ratio > bestRatio {
			bestRatio = ratio
			strongest = t
		}
		if ratio < worstRatio {
			worstRatio = ratio
			weakest = t
		}
	}

	if len(types) < 2 || worstRatio >= 1.0 {
		weakest = ""
	}
	return strongest, weakest
}

// issueTaxonomy buckets free-text criterion notes into a small fixed set of
// recurring problem themes. English keyword matching only.
var issueTaxonomy = []struct {
	tag      string
	keywords []string
}{
	{"lighting", []string{"light", "dark", "bright", "shadow", "exposure", "glare"}},
	{"framing", []string{"frame", "framing", "composition", "crop", "angle", "cut off", "centered"}},
	{"wrong-subject", []string{"wrong", "different subject", "not the", "unrelated", "doesn't show", "does not show"}},
	{"distance", []string{"too far", "far away", "distance", "too small", "closer"}},
	{"motion", []string{"blur", "motion", "shaky", "unstable", "moving"}},
	{"audio-clarity", []string{"audio", "noise", "quiet", "muffled", "volume", "inaudible", "wind"}},
}

// commonIssueTags scans every failed criterion note across history and keeps
// tags that recur more than once, ranked by frequency, capped at three.
func commonIssueTags(history []questhunt.QuestAttemptSummary) []string {
	counts := map[string]int{}
	for _, h := range history {
		for _, note := range h.Notes {
			if note.Passed {
				continue
			}
			text := strings.ToLower(note.Criterion + " " + note.Observation)
			for _, bucket := range issueTaxonomy {
				for _, kw := range bucket.keywords {
					if strings.Contains(text, kw) {
						counts[bucket.tag]++
						break
					}
				}
			}
		}
	}

	var tags []string
	for _, bucket := range issueTaxonomy {
		if counts[bucket.tag] > 1 {
			tags = append(tags, bucket.tag)
		}
	}
	// Rank by frequency; taxonomy order breaks ties so the result is stable.
	sort.SliceStable(tags, func(i, j int) bool { return counts[tags[i]] > counts[tags[j]] })
	if len(tags) > 3 {
		tags = tags[:3]
	}
	return tags
}

// voiceFor recomputes tone and encouragement purely from the current success
// rate. Fresh every time — never incrementally drifted.
func voiceFor(p questhunt.SessionProfile) questhunt.VoiceState {
	v := questhunt.VoiceState{ReferenceStyle: "brief"}
	switch {
	case p.SuccessRate >= 0.8:
		v.NarrativeTone = "confident"
		v.EncouragementLevel = questhunt.EncouragementLow
	case p.SuccessRate >= 0.5:
		v.NarrativeTone = "balanced"
		v.EncouragementLevel = questhunt.EncouragementMedium
	default:
		v.NarrativeTone = "supportive"
		v.EncouragementLevel = questhunt.EncouragementHigh
	}
	if len(p.QuestHistory) >= 4 {
		v.ReferenceStyle = "detailed"
	}
	return v
}

// growCallbacks appends any newly triggered canned callback not already
// present. Phrases are never dropped except oldest-first when a genuinely
// new phrase would exceed the cap of three.
func growCallbacks(existing []string, p questhunt.SessionProfile) []string {
	out := make([]string, len(existing))
	copy(out, existing)

	var triggered []string
	for _, tag := range p.CommonIssueTags {
		switch tag {
		case "lighting":
			triggered = append(triggered, "chasing the light again")
		case "framing":
			triggered = append(triggered, "the framing strikes back")
		case "audio-clarity":
			triggered = append(triggered, "the microphone has opinions")
		}
	}
	if p.StrongestMediaType != "" && p.WeakestMediaType != "" && p.StrongestMediaType != p.WeakestMediaType {
		triggered = append(triggered,
			fmt.Sprintf("%s wizard, %s apprentice", p.StrongestMediaType, p.WeakestMediaType))
	}

	for _, phrase := range triggered {
		if contains(out, phrase) {
			continue
		}
		out = append(out, phrase)
		if len(out) > 3 {
			out = out[1:]
		}
	}
	return out
}

// nickname awards a milestone nickname. The caller makes it permanent.
func nickname(p questhunt.SessionProfile) string {
	n := len(p.QuestHistory)
	switch {
	case n >= 5 && p.SuccessRate >= 0.8:
		return "the Pathfinder"
	case n >= 10 && p.SuccessRate < 0.5:
		return "the Undeterred"
	default:
		return ""
	}
}

// Hint renders the short context string handed to the adjudicator alongside
// a submission.
func Hint(p questhunt.SessionProfile) string {
	if len(p.QuestHistory) == 0 {
		return "First quest of the campaign; no history yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Success rate %.0f%% over %d quests (avg %.1f attempts).",
		p.SuccessRate*100, len(p.QuestHistory), p.AverageAttemptsPerQuest)
	if p.WeakestMediaType != "" {
		fmt.Fprintf(&b, " Struggles with %s.", p.WeakestMediaType)
	}
	if len(p.CommonIssueTags) > 0 {
		fmt.Fprintf(&b, " Recurring issues: %s.", strings.Join(p.CommonIssueTags, ", "))
	}
	fmt.Fprintf(&b, " Tone: %s, encouragement %s.", p.Voice.NarrativeTone, p.Voice.EncouragementLevel)
	if p.Voice.EarnedNickname != "" {
		fmt.Fprintf(&b, " Player nickname: %s.", p.Voice.EarnedNickname)
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
