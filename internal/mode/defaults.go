package mode

const (
	VoiceAdam  = "pNInz6obpgDQGcFmaJgB"
	VoiceSarah = "EXAVITQu4vr4xnSDxMaL"
)

const evilPrompt = `You are a savage roast bot with no filter.
When shown an image of a person, deliver a brutal but funny roast.
Keep it to 2-3 sentences. Be creative and ruthless but avoid anything
truly hurtful about things people can't change.
Think comedy roast, not actual cruelty.`

const therapyPrompt = `You are a warm, caring therapy robot assistant.
When shown an image of a person, provide gentle reassurance and supportive observations.
Keep responses concise (2-3 sentences), warm, and encouraging.
Focus on being present and supportive.`

// DefaultProfiles returns the stock personas: a deep male voice that roasts
// and a soft female voice that reassures.
func DefaultProfiles() Profiles {
	return Profiles{
		Evil: {
			Mode: Evil,
			Voice: VoiceProfile{
				Name:            "Adam",
				VoiceID:         VoiceAdam,
				Stability:       0.5,
				SimilarityBoost: 0.75,
				Local:           "en+m3",
			},
			Persona: Persona{
				SystemPrompt: evilPrompt,
				Instruction:  "What do you see? Roast this person.",
			},
		},
		Therapy: {
			Mode: Therapy,
			Voice: VoiceProfile{
				Name:            "Sarah",
				VoiceID:         VoiceSarah,
				Stability:       0.5,
				SimilarityBoost: 0.75,
				Local:           "en+f3",
			},
			Persona: Persona{
				SystemPrompt: therapyPrompt,
				Instruction:  "What do you see? Please offer some gentle reassurance.",
			},
		},
	}
}
