package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeQuotedStrings(t *testing.T) {
	require.Equal(t,
		[]string{"CHAT", "1:0", "hello world"},
		tokenize(`CHAT 1:0 "hello world"`))

	require.Equal(t,
		[]string{"CREATE", "type:sng", "name", "two words", "players:9"},
		tokenize(`CREATE type:sng name "two words" players:9`))

	// an unterminated quote keeps the trailing text as one token
	require.Equal(t,
		[]string{"CHAT", "-1", "dangling"},
		tokenize(`CHAT -1 "dangling`))
}

func TestSplitMsgID(t *testing.T) {
	id, rest := splitMsgID([]string{"42", "REQUEST", "gamelist"})
	require.Equal(t, "42", id)
	require.Equal(t, []string{"REQUEST", "gamelist"}, rest)

	id, rest = splitMsgID([]string{"REQUEST", "gamelist"})
	require.Empty(t, id)
	require.Len(t, rest, 2)
}

func TestParseKV(t *testing.T) {
	kv := parseKV([]string{"type:sng", "players:9", "name:main", "flag"})
	require.Equal(t, "sng", kv["type"])
	require.Equal(t, "9", kv["players"])
	require.Equal(t, "", kv["flag"])
}
