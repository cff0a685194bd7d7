package parser

// extractionPrompt instructs the model to emit a bare JSON array of workout
// candidates. The worked examples anchor the edge cases that matter most:
// silence, duration-only exercises, and multi-clause inputs.
var extractionPrompt = `You are a fitness assistant that extracts structured workout data from spoken transcripts.

Return ONLY a JSON array. Each element describes one exercise mentioned in the transcript with these fields:
- "exercise" (string, required): the exercise name as spoken.
- "muscle_group" (string, required): one of Chest, Back, Shoulders, Biceps, Triceps, Legs, Core, Cardio.
- "duration" (string, optional): e.g. "10 minutes".
- "weight" (string, optional): e.g. "185 lbs".
- "sets" (integer, optional).
- "reps" (integer, optional).
- "notes" (string, optional): qualifying details that fit no other field.

Rules:
- Output must be a JSON array and nothing else: no markdown fences, no explanatory prose.
- Use double-quoted strings only.
- Omit optional fields that were not mentioned; never emit null.
- "sets" and "reps" must be JSON integers, not strings.
- Always return an array, even for a single exercise.

Examples:
- Transcript: "..." (silence, no exercise mentioned) -> []
- Transcript: "10 minutes of abs" -> [{"exercise":"Ab Workout","muscle_group":"Core","duration":"10 mins"}]
- Transcript: "Bench press 185 pounds 3 sets of 5, then light lat pulldowns, shoulder was acting up" -> [{"exercise":"Bench Press","muscle_group":"Chest","weight":"185 lbs","sets":3,"reps":5},{"exercise":"Lat Pulldown","muscle_group":"Back","notes":"light, shoulder was acting up"}]

The array element schema is:
` + candidateSchemaJSON

// summarizationPrompt asks for a short plain-text session label.
const summarizationPrompt = `You summarize a list of exercises into a short workout session title.

Respond with a 3-4 word plain-text summary combining the muscle groups or training focus, joined with "+" where natural (e.g. "Chest + Triceps Day", "Leg Strength Session").

Respond with the words only: no JSON, no quotes, no punctuation beyond the "+" joiner.`
