package UnitManager

import (
	"errors"
	"sync"
	"time"

	"github.com/Emil-Frisk/Final-Project/src/inter"
)

type UnitManager struct {
	DataStore       inter.DataStore
	IdentityManager inter.IdentityManager
	timer           sync.Map
	message         inter.MessageQueue
	DeathLine       time.Duration
}

func NewUnitManager(ds inter.DataStore, IdentityManager inter.IdentityManager) inter.UnitManager {
	return &UnitManager{
		DataStore:       ds,
		IdentityManager: IdentityManager,
		timer:           sync.Map{},
		message:         NewMessageQueue(100),
	}
}

func (d *UnitManager) HandleHeartbeat(uuid string) {
	d.timer.Store(uuid, time.Now())
}

func (d *UnitManager) QueryUnitStatus(uuid string) (inter.UnitStatus, error) {
	if val, ok := d.timer.Load(uuid); ok {
		if time.Now().Sub(val.(time.Time)) < d.DeathLine {
			return inter.StatusOnline, nil
		}
		return inter.StatusOffline, nil
	}
	return inter.StatusOffline, errors.New("单元未找到")
}

func (d *UnitManager) QueuePush(uuid string, message interface{}) error {
	return d.message.Push(uuid, message)
}

func (d *UnitManager) QueuePop(uuid string) (interface{}, bool) {
	return d.message.Pop(uuid)
}

func (d *UnitManager) QueueIsEmpty(uuid string) bool {
	return d.message.IsEmpty(uuid)
}

type MessageQueue struct {
	queues   sync.Map
	capacity int
}

func NewMessageQueue(cap int) inter.MessageQueue {
	return &MessageQueue{
		capacity: cap,
	}
}

func (m *MessageQueue) Push(uuid string, message interface{}) error {
	actual, _ := m.queues.LoadOrStore(uuid, make(chan interface{}, m.capacity))
	q := actual.(chan interface{})

	select {
	case q <- message:
		return nil
	default:
		for {
			select {
			case <-q:
			default:
			}
			select {
			case q <- message:
				return nil
			default:
			}
		}
	}
}

func (m *MessageQueue) Pop(uuid string) (interface{}, bool) {
	actual, exists := m.queues.Load(uuid)
	if !exists {
		return nil, false
	}
	q := actual.(chan interface{})
	select {
	case msg := <-q:
		return msg, true
	default:
		return nil, false
	}
}

func (m *MessageQueue) IsEmpty(uuid string) bool {
	actual, exists := m.queues.Load(uuid)
	if !exists {
		return true
	}
	return len(actual.(chan interface{})) == 0
}
