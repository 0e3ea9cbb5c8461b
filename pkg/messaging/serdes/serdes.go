package serdes

import (
	jsoniter "github.com/json-iterator/go"
	"pubharness/pkg/messaging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func MarshalMessageEnvelope(env *messaging.MessageEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

func UnmarshalMessageEnvelope(data []byte) (messaging.MessageEnvelope, error) {
	env := messaging.MessageEnvelope{}
	err := json.Unmarshal(data, &env)
	return env, err
}
