package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name        string
		cb          *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"unique set", &tele.Callback{Unique: "check_subscription", Data: "x"}, "check_subscription", "x"},
		{"plain", &tele.Callback{Data: "check_subscription"}, "check_subscription", ""},
		{"encoded", &tele.Callback{Data: "\fpage|2"}, "page", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := Parse(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}
