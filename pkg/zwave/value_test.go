package zwave

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueEqualMatchesKind(t *testing.T) {

	assert := assert.New(t)

	assert.True(Bool(true).Equal(Bool(true)))
	assert.False(Bool(true).Equal(Bool(false)))
	assert.True(Number(128).Equal(Number(128)))
	assert.False(Number(0).Equal(Bool(false)), "kind must match")
	assert.False(String("1").Equal(Number(1)), "kind must match")
	assert.False(Value{}.Equal(Bool(false)))
	assert.True(Value{}.Equal(Value{}))
}

func TestValueZero(t *testing.T) {

	assert := assert.New(t)

	assert.True(Number(0).IsZero())
	assert.True(Bool(false).IsZero())
	assert.False(Number(255).IsZero())
	assert.False(String("0").IsZero())
	assert.True(Bool(true).IsTrue())
	assert.False(Number(1).IsTrue())
}

func TestValueJSON(t *testing.T) {

	assert := assert.New(t)

	out, err := json.Marshal(map[string]Value{"a": Bool(true), "b": Number(21.5), "c": String("x")})
	assert.NoError(err)
	assert.JSONEq(`{"a":true,"b":21.5,"c":"x"}`, string(out))

	var v Value
	assert.NoError(json.Unmarshal([]byte(`99`), &v))
	assert.True(v.Equal(Number(99)))
	assert.NoError(json.Unmarshal([]byte(`{"x":1}`), &v))
	assert.Equal(KindString, v.Kind)
}
