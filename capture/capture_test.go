package capture

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swdee/go-vidcount/sampler"
	"gocv.io/x/gocv"
)

type otherFrame struct{}

func (otherFrame) Close() error {
	return nil
}

func TestOpenMissingFile(t *testing.T) {

	name := filepath.Join(t.TempDir(), "missing.mp4")

	src, err := Opener(name)()

	assert.Nil(t, src)
	assert.ErrorIs(t, err, sampler.ErrOpenSource)
	assert.Contains(t, err.Error(), "missing.mp4")
}

func TestMat(t *testing.T) {

	img := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8UC3)
	defer img.Close()

	m, err := Mat(&img)
	assert.NoError(t, err)
	assert.Equal(t, 6, m.Cols())
	assert.Equal(t, 4, m.Rows())

	_, err = Mat(otherFrame{})
	assert.Error(t, err)
}
