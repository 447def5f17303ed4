package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const project = `<?xml version="1.0"?>
<project>
  <transferItem addr="10.0.0.9" port="1" type="udp" data="1"/>
  <txlist>
    <transferItem addr="127.0.0.1" port="9100" type="udp" data="50331649"/>
    <transferItem addr="" port="9200" type="tcp" data="3"/>
    <transferItem addr="127.0.0.1" port="nope" data="1"/>
    <transferItem addr="127.0.0.1" port="9300"/>
  </txlist>
</project>`

func TestParseOutputTargets(t *testing.T) {
	got, err := ParseOutputTargets(writeFile(t, "project.xml", project))
	require.NoError(t, err)
	assert.Equal(t, []OutputTarget{
		{Addr: "127.0.0.1", Port: 9100, Type: "udp", Mask: 50331649},
		{Addr: "", Port: 9200, Type: "tcp", Mask: 3},
		{Addr: "127.0.0.1", Port: 9300, Type: "udp", Mask: 0},
	}, got)
}

func TestParseOutputTargetsErrors(t *testing.T) {
	_, err := ParseOutputTargets(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)

	_, err = parseOutputTargets(strings.NewReader(`<txlist><transferItem port="1">`))
	assert.Error(t, err)
}
