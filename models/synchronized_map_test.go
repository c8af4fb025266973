package models_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/stretchr/testify/assert"
)

func TestNewSynchronizedMap(t *testing.T) {
	syncMap := models.NewSynchronizedMap()
	assert.NotNil(t, syncMap)
	assert.Equal(t, 0, syncMap.Len())
}

func TestGet(t *testing.T) {
	syncMap := models.NewSynchronizedMap()
	assert.Equal(t, "", syncMap.Get("does not exist"))
	syncMap.Add("new key", "new value")
	assert.Equal(t, "new value", syncMap.Get("new key"))
}

func TestCopy(t *testing.T) {
	syncMap := models.NewSynchronizedMap()
	syncMap.Add("box1:8080", "ABC")
	snapshot := syncMap.Copy()
	assert.Equal(t, map[string]string{"box1:8080": "ABC"}, snapshot)
	snapshot["box2:8080"] = "DEF"
	assert.Equal(t, 1, syncMap.Len())
	assert.Equal(t, "", syncMap.Get("box2:8080"))
}

func TestConcurrentAdd(t *testing.T) {
	syncMap := models.NewSynchronizedMap()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			syncMap.Add(fmt.Sprintf("box%d:8080", i), fmt.Sprintf("hash%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, syncMap.Len())
	assert.Equal(t, "hash17", syncMap.Get("box17:8080"))
}
