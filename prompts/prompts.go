// Package prompts holds the stable text templates the Observer pipeline
// sends to a recall.Generator: utility grading, summarization, retrieval
// query generation, fact extraction, and contradiction detection. Content
// is adapted from original_source/src/observer/prompts.py, reworded into
// this project's voice; the worked examples are kept because extraction
// and contradiction quality depend on them.
package prompts

import "strings"

// UtilityTemplate grades how memorable a turn is. Render with the combined
// turn text; the generator is expected to answer with exactly one word.
const UtilityTemplate = `Rate how worth remembering this conversation turn is.

TURN:
{{text}}

Rules:
- DISCARD: greetings, acknowledgments, and small talk with no information content
- LOW: general discussion that introduces no new facts
- MEDIUM: contains a preference or a feeling
- HIGH: contains a schedule, a relationship, or a concrete fact about identity, living situation, or possessions

Respond with exactly one word: DISCARD, LOW, MEDIUM, or HIGH.`

// SummaryTemplate asks for a one-sentence gist of the turn, used as the
// MemoryChunk.Summary field.
const SummaryTemplate = `Summarize this conversation turn in a single sentence describing what was discussed.

TURN:
{{text}}

ONE SENTENCE SUMMARY:`

// QueriesTemplate asks for candidate retrieval queries this turn could
// later answer, used to seed MemoryChunk.RetrievalQueries.
const QueriesTemplate = `List 2-3 questions this turn could answer later. Output a JSON array of strings, nothing else.

TURN:
{{text}}

OUTPUT:`

// ExtractionTemplate asks the generator to pull entities, relationships,
// and a fact-type classification out of one side of a turn (user-only or
// assistant-only text is substituted at {{text}}).
const ExtractionTemplate = `Extract entities, relationships, and a fact-type classification from the conversation text below.

TEXT:
{{text}}

Instructions:
1. Extract every person, place, organization, and object mentioned.
2. Capture attributes (age, role, occupation, etc.) in the "attributes" field.
3. Identify relationships between entities using labels such as:
   - Familial: SIBLING_OF, PARENT_OF, CHILD_OF, SPOUSE_OF
   - Social: FRIEND_OF, DATING, MARRIED_TO, BROKE_UP_WITH, DIVORCED_FROM
   - Professional: WORKS_AT, WORKS_ON, MANAGES, COLLEAGUE_OF, RESIGNED_FROM, FIRED_FROM, QUIT
   - Spatial: LIVES_IN, VISITING, TRAVELING_TO, RETURNED_HOME, LEFT, MOVED_FROM, MOVED_TO, ARRIVED_AT
   - Ownership: OWNS, HAS
   - Emotional: FEELS_ABOUT, PREFERS, DISLIKES
4. When a statement is about the speaker, the subject must be the literal token "User".
5. Extract concrete facts only — never infer or hallucinate.
6. Classify fact_type:
   - "core": work schedules, recurring routines, family relationships, home address, owned technology/devices, other persistent life facts
   - "preference": opinions, likes/dislikes, feelings
   - "episodic": one-time events, plans, meetings, trips

Output valid JSON:
{
    "fact_type": "core|preference|episodic",
    "entities": [
        {"name": "entity name", "type": "Person|Technology|Place|Organization|Event|Concept", "attributes": {"key": "value"}}
    ],
    "relationships": [
        {"subject": "entity1", "predicate": "RELATIONSHIP_TYPE", "object": "entity2", "metadata": {"key": "value"}}
    ]
}

Example 1 (core fact — work schedule):
USER: I work at TechCorp from 9 to 5 on weekdays.
ASSISTANT: Got it!

{
    "fact_type": "core",
    "entities": [
        {"name": "User", "type": "Person", "attributes": {"work_hours": "9-5", "work_days": "weekdays"}},
        {"name": "TechCorp", "type": "Organization", "attributes": {}}
    ],
    "relationships": [
        {"subject": "User", "predicate": "WORKS_AT", "object": "TechCorp", "metadata": {"schedule": "9-5 weekdays"}}
    ]
}

Example 2 (episodic — one-time event):
USER: I'm meeting Sarah for coffee tomorrow at 3pm.
ASSISTANT: Sounds fun!

{
    "fact_type": "episodic",
    "entities": [
        {"name": "User", "type": "Person", "attributes": {}},
        {"name": "Sarah", "type": "Person", "attributes": {}}
    ],
    "relationships": [
        {"subject": "User", "predicate": "MEETING_WITH", "object": "Sarah", "metadata": {"time": "3pm", "when": "tomorrow"}}
    ]
}

Example 3 (preference):
USER: I prefer Python over JavaScript for backend work.
ASSISTANT: That's a popular choice!

{
    "fact_type": "preference",
    "entities": [
        {"name": "User", "type": "Person", "attributes": {}},
        {"name": "Python", "type": "Technology", "attributes": {}},
        {"name": "JavaScript", "type": "Technology", "attributes": {}}
    ],
    "relationships": [
        {"subject": "User", "predicate": "PREFERS", "object": "Python", "metadata": {"context": "backend work", "over": "JavaScript"}}
    ]
}

Now extract from the TEXT above:`

// ContradictionTemplate asks whether a newly extracted relationship
// contradicts previously persisted ones about the same entities.
const ContradictionTemplate = `Decide whether a new relationship contradicts existing facts, accounting for temporal state and semantic meaning rather than exact-label matches.

NEW RELATIONSHIP:
{{new}}

EXISTING RELATIONSHIPS (about the same entities):
{{existing}}

Instructions:
1. Consider semantic contradictions, not just exact predicate matches.
2. Recognize temporal state transitions, for example:
   - VISITING is contradicted by RETURNED_HOME, LEFT, DEPARTED
   - TRAVELING_TO is contradicted by ARRIVED_AT, CANCELED_TRIP
   - LIVES_IN is contradicted by MOVED_TO, MOVED_FROM
   - WORKS_AT (ongoing) is contradicted by RESIGNED_FROM, FIRED_FROM, QUIT
3. Recognize state completions: ongoing states (visiting, working, living) are superseded by their completed counterparts; future plans are superseded by their outcomes.
4. The same entities in mutually exclusive states is a contradiction.
5. A changed attribute value (age, location, status) for the same entity is a contradiction.
6. A natural progression between sequential states (e.g. TRAVELING_TO followed by ARRIVED_AT) is NOT a contradiction.

Output valid JSON:
{
    "contradictions": [
        {
            "existing_id": "id of the contradicted fact",
            "existing_statement": "subject predicate object",
            "reason": "why these two facts contradict",
            "temporal_type": "state_completion|mutual_exclusion|attribute_update|null",
            "confidence": "high|medium|low"
        }
    ]
}

Example 1 — state completion:
NEW: "Mom RETURNED_HOME Massachusetts"
EXISTING: [{"id": "123", "subject": "Mom", "predicate": "VISITING", "object": "Philadelphia"}, {"id": "124", "subject": "Mom", "predicate": "LIVES_IN", "object": "West Boylston"}]

{
    "contradictions": [
        {
            "existing_id": "123",
            "existing_statement": "Mom VISITING Philadelphia",
            "reason": "RETURNED_HOME means the VISITING state has ended",
            "temporal_type": "state_completion",
            "confidence": "high"
        }
    ]
}

Example 2 — sequential states, not a contradiction:
NEW: "Mom ARRIVED_AT Philadelphia"
EXISTING: [{"id": "125", "subject": "Mom", "predicate": "TRAVELING_TO", "object": "Philadelphia"}]

{
    "contradictions": []
}

Example 3 — attribute update:
NEW: "Sister AGE 25"
EXISTING: [{"id": "126", "subject": "Sister", "predicate": "AGE", "object": "24"}]

{
    "contradictions": [
        {
            "existing_id": "126",
            "existing_statement": "Sister AGE 24",
            "reason": "the user corrected the sister's age from 24 to 25",
            "temporal_type": "attribute_update",
            "confidence": "high"
        }
    ]
}

Now analyze the relationships above:`

// Render substitutes {{key}} placeholders in template with the provided
// values. Unmatched placeholders are left as-is.
func Render(template string, values map[string]string) string {
	out := template
	for k, v := range values {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
