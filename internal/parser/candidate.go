package parser

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Candidate is the JSON shape the extraction prompt asks the model to emit,
// one element per exercise mentioned in the transcript.
type Candidate struct {
	Exercise    string `json:"exercise" jsonschema_description:"Exercise name as spoken"`
	MuscleGroup string `json:"muscle_group" jsonschema:"enum=Chest,enum=Back,enum=Shoulders,enum=Biceps,enum=Triceps,enum=Legs,enum=Core,enum=Cardio" jsonschema_description:"Primary muscle group targeted"`
	Duration    string `json:"duration,omitempty" jsonschema_description:"Duration as spoken, e.g. '10 minutes'"`
	Weight      string `json:"weight,omitempty" jsonschema_description:"Weight as spoken, e.g. '185 lbs'"`
	Sets        *int   `json:"sets,omitempty" jsonschema_description:"Number of sets as a JSON integer"`
	Reps        *int   `json:"reps,omitempty" jsonschema_description:"Number of reps per set as a JSON integer"`
	Notes       string `json:"notes,omitempty" jsonschema_description:"Qualifying details that fit no other field"`
}

// candidateSchemaJSON is the reflected JSON schema for a Candidate array,
// embedded into the extraction prompt as a shape hint for the model.
var candidateSchemaJSON = mustSchemaJSON()

func mustSchemaJSON() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&Candidate{})
	b, err := json.Marshal(schema)
	if err != nil {
		panic("parser: reflecting candidate schema: " + err.Error())
	}
	return string(b)
}
