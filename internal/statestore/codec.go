package statestore

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/armadaproject/podscheduler/internal/model"
	"github.com/armadaproject/podscheduler/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func encode(path string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, storage.NewSerializationError(path, err)
	}
	return data, nil
}

func decodeTaskInfo(path string, data []byte) (*model.TaskInfo, error) {
	info := &model.TaskInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, storage.NewSerializationError(path, err)
	}
	return info, nil
}

func decodeTaskStatus(path string, data []byte) (*model.TaskStatus, error) {
	status := &model.TaskStatus{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, storage.NewSerializationError(path, err)
	}
	return status, nil
}
