package standardize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	t.Run("Strips Accents", func(t *testing.T) {
		assert.Equal(t, "TRANSPORTES LOPEZ SA DE CV", Fold("Transportes López SA de CV"))
	})

	t.Run("Collapses Whitespace", func(t *testing.T) {
		assert.Equal(t, "LOGISTICA DEL NORTE", Fold("  Logística   del\tNorte "))
	})

	t.Run("Folds Enie", func(t *testing.T) {
		assert.Equal(t, "COMPANIA MINERA", Fold("Compañía Minera"))
	})

	t.Run("Empty String", func(t *testing.T) {
		assert.Equal(t, "", Fold(""))
	})
}

func TestEqual(t *testing.T) {
	t.Run("Cosmetic Differences Are Equal", func(t *testing.T) {
		assert.True(t, Equal("Transportes  LÓPEZ sa de cv", "TRANSPORTES LOPEZ SA DE CV"))
	})

	t.Run("Substring Difference Is Not Equal", func(t *testing.T) {
		assert.False(t, Equal("Transportes López SA de CV", "Transportes López SA"))
	})
}
