package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByModel_DeepSeek(t *testing.T) {
	spec := FindByModel("deepseek-chat")
	require.NotNil(t, spec)
	assert.Equal(t, "deepseek", spec.Name)
}

func TestFindByModel_OpenAI(t *testing.T) {
	spec := FindByModel("gpt-4o")
	require.NotNil(t, spec)
	assert.Equal(t, "openai", spec.Name)
}

func TestFindByModel_Unknown(t *testing.T) {
	spec := FindByModel("some-unknown-model")
	assert.Nil(t, spec)
}

func TestFindByName(t *testing.T) {
	spec := FindByName("deepseek")
	require.NotNil(t, spec)
	assert.Equal(t, "DeepSeek", spec.DisplayName)
	assert.Equal(t, "https://api.deepseek.com/v1", spec.DefaultAPIBase)
}

func TestFindByName_NotFound(t *testing.T) {
	spec := FindByName("nonexistent")
	assert.Nil(t, spec)
}

func TestProviderSpec_Label(t *testing.T) {
	spec := &ProviderSpec{Name: "test", DisplayName: "Test Provider"}
	assert.Equal(t, "Test Provider", spec.Label())

	spec2 := &ProviderSpec{Name: "test"}
	assert.Equal(t, "Test", spec2.Label())
}

func TestProviderCount(t *testing.T) {
	assert.Len(t, Providers, 2)
}
