package service

import (
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

func JsonMarshal(v interface{}) (string, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// stringToNumberHookFunc Redis Hash 里的数值都以字符串形式存放
func stringToNumberHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Kind, to reflect.Kind, data interface{}) (interface{}, error) {
		if from != reflect.String {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return strconv.Atoi(data.(string))
		case reflect.Float64:
			return strconv.ParseFloat(data.(string), 64)
		}
		return data, nil
	}
}

func decodeHash(hash map[string]string, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: stringToNumberHookFunc(),
		Result:     out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(hash)
}
