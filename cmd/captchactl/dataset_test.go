package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/stretchr/testify/assert"
)

func TestSkipTurnsFailuresIntoRefresh(t *testing.T) {
	assert.NoError(t, skip(nil))

	noMatch := fmt.Errorf("circle: %w", captcha.ErrNoMatch)
	assert.Same(t, noMatch, skip(noMatch))

	err := skip(&captcha.DecodeError{Err: errors.New("png truncado")})
	assert.True(t, captcha.IsRefreshSignal(err))
	assert.Contains(t, err.Error(), "png truncado")
}
