// Copyright (c) 2026 The Stakewell developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHandler(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(LevelDebug)

	l := NewLogger(NewTerminalHandler(&buf, lvl, false))
	l = l.With("pkg", "test")

	l.Info("hello", "amount", big.NewInt(42), "u", uint256.NewInt(7), "flag", true)
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "INFO "))
	assert.Contains(t, out, "pkg=test")
	assert.Contains(t, out, "amount=42")
	assert.Contains(t, out, "u=7")
	assert.Contains(t, out, "flag=true")

	buf.Reset()
	l.Trace("below threshold")
	assert.Empty(t, buf.String())

	lvl.Set(LevelTrace)
	l.Trace("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestFormatSlogValue(t *testing.T) {
	assert.Equal(t, "<nil>", FormatSlogValue(slog.AnyValue((*big.Int)(nil))))
	assert.Equal(t, "text", FormatSlogValue(slog.StringValue("text")))
	assert.Equal(t, "100", FormatSlogValue(slog.AnyValue(big.NewInt(100))))
}
