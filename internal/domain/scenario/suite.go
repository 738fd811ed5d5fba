package scenario

// PersonaHighStress selects the additional meeting-overload scenario.
const PersonaHighStress = "high_stress"

// BuiltinSuite returns the standard evaluation scenarios. The persona adds
// profile-derived extras; an empty persona returns the base suite only.
func BuiltinSuite(persona string) []Scenario {
	suite := []Scenario{
		{
			ID:               "sleep-issues",
			Name:             "Sleep Issues",
			Prompt:           "I had trouble sleeping last night and feel tired. What should I do?",
			ExpectedTools:    []string{"get_health_metrics"},
			ExpectedOutcomes: []string{"sleep", "recommendation", "insight"},
		},
		{
			ID:               "schedule-optimization",
			Name:             "Schedule Optimization",
			Prompt:           "Can you check my schedule and help me optimize it for better wellness?",
			ExpectedTools:    []string{"optimize_calendar"},
			ExpectedOutcomes: []string{"calendar", "optimization", "suggestion"},
		},
		{
			ID:               "stress-management",
			Name:             "Stress Management",
			Prompt:           "I'm feeling stressed. What products might help?",
			ExpectedTools:    []string{"search_wellness_products"},
			ExpectedOutcomes: []string{"stress", "product", "recommendation"},
		},
		{
			ID:               "hydration-reminder",
			Name:             "Hydration Reminder",
			Prompt:           "Send me a reminder to drink water",
			ExpectedTools:    []string{"send_message"},
			ExpectedOutcomes: []string{"reminder", "hydration"},
		},
	}

	if persona == PersonaHighStress {
		suite = append(suite, Scenario{
			ID:               "meeting-overload",
			Name:             "Meeting Overload",
			Prompt:           "My meetings are back-to-back today. Help!",
			ExpectedTools:    []string{"optimize_calendar", "send_message"},
			ExpectedOutcomes: []string{"break", "schedule", "stress"},
		})
	}

	return suite
}
