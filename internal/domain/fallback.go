package domain

// FallbackQuestions is the built-in pool used when the question bank cannot be loaded.
func FallbackQuestions() []Question {
	return []Question{
		{
			Text:         "What is the capital of France?",
			Options:      []string{"London", "Berlin", "Paris", "Madrid"},
			CorrectIndex: 2,
			Category:     "Geography",
		},
		{
			Text:         "Which planet is known as the Red Planet?",
			Options:      []string{"Venus", "Mars", "Jupiter", "Saturn"},
			CorrectIndex: 1,
			Category:     "Science",
		},
	}
}
