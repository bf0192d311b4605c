package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":              ModeBrainstorming,
		"challenge":     ModeChallenge,
		" Strategic ":   ModeStrategic,
		"TECHNICAL":     ModeTechnical,
		"freestyle":     ModeBrainstorming,
		"brainstorming": ModeBrainstorming,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), in)
	}
}

func TestSystemPrompt_IncludesFounderContext(t *testing.T) {
	prompt := SystemPrompt(ChatContext{
		Mode:           ModeStrategic,
		FieldOfStudy:   "biology",
		IsSoloFounder:  true,
		IdeaStage:      "validation",
		ProjectContext: "lab automation",
	})

	assert.Contains(t, prompt, "strategic advisor mode")
	assert.Contains(t, prompt, "biology")
	assert.Contains(t, prompt, "building solo")
	assert.Contains(t, prompt, "validation stage")
	assert.Contains(t, prompt, "lab automation")
}

func TestBuildMessages_Order(t *testing.T) {
	msgs := BuildMessages("next", ChatContext{ConversationHistory: []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
	}})

	require.Len(t, msgs, 4)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "q1", msgs[1].Content)
	assert.Equal(t, "a1", msgs[2].Content)
	assert.Equal(t, Message{Role: RoleUser, Content: "next"}, msgs[3])
}

func TestBalancers(t *testing.T) {
	endpoints := []string{"a", "b", "c"}

	rr, err := NewBalancer("round_robin")
	require.NoError(t, err)
	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, rr.Next(endpoints))
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)

	random, err := NewBalancer("random")
	require.NoError(t, err)
	assert.Contains(t, endpoints, random.Next(endpoints))
	assert.Empty(t, random.Next(nil))

	_, err = NewBalancer("least_connections")
	assert.Error(t, err)
}
