package challenge

import (
	"errors"
	"testing"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultClassifier() Classifier {
	return Classifier{Vocabulary: shape.DefaultVocabulary(), SequenceLength: 4}
}

func TestClassifyQuestionModes(t *testing.T) {
	cases := []struct {
		question string
		want     Challenge
	}{
		{"请选出图中红色的图形", ColorChallenge{Color: "red"}},
		{"请选出图中蓝色的图形", ColorChallenge{Color: "blue"}},
		{"请选出图中的圆环", ShapeChallenge{Shape: shape.Ring}},
		{"请选出图中的五角星", ShapeChallenge{Shape: shape.Star}},
		{"请依次点击【天地玄黄】", SequenceChallenge{Chars: []rune("天地玄黄")}},
		{"green", ColorChallenge{Color: "green"}},
		{" triangle ", ShapeChallenge{Shape: shape.Triangle}},
	}
	c := defaultClassifier()
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			got, err := c.Classify(tc.question)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.Kind(), got.Kind())
		})
	}
}

func TestClassifyRejectsUnsupported(t *testing.T) {
	c := defaultClassifier()
	for _, q := range []string{
		"请选出图中棕色的图形",
		"请选出图中的爱心",
		"请依次点击【天地玄】",
		"",
	} {
		_, err := c.Classify(q)
		var unsupported *captcha.UnsupportedTargetError
		assert.True(t, errors.As(err, &unsupported), "pergunta %q", q)
		assert.True(t, captcha.IsRefreshSignal(err))
	}
}

func TestClassifyHonoursVocabularySubset(t *testing.T) {
	c := Classifier{Vocabulary: shape.Vocabulary{Shapes: []string{"circle"}, Colors: []string{"red"}}, SequenceLength: 4}

	_, err := c.Classify("请选出图中绿色的图形")
	assert.Error(t, err)
	got, err := c.Classify("请选出图中的圆形")
	require.NoError(t, err)
	assert.Equal(t, "circle", got.Target())
}
