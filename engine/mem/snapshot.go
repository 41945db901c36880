package mem

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	deploymentsBucket        = []byte("deployments")
	eventSubscriptionsBucket = []byte("event_subscriptions")
	executionsBucket         = []byte("executions")
	jobsBucket               = []byte("jobs")
	processDefinitionsBucket = []byte("process_definitions")
	sequencesBucket          = []byte("sequences")
)

// snapshotSequences holds the ID sequences of all repositories, since deleted entities must not be reused.
type snapshotSequences struct {
	Deployments        int32 `json:"deployments"`
	EventSubscriptions int32 `json:"eventSubscriptions"`
	Executions         int32 `json:"executions"`
	Jobs               int32 `json:"jobs"`
	ProcessDefinitions int32 `json:"processDefinitions"`
}

func openSnapshot(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file %s: %v", path, err)
	}
	return db, nil
}

func loadSnapshot(db *bbolt.DB, ctx *memContext) error {
	return db.View(func(tx *bbolt.Tx) error {
		if err := loadBucket(tx, deploymentsBucket, &ctx.deployments.entities); err != nil {
			return err
		}
		if err := loadBucket(tx, eventSubscriptionsBucket, &ctx.eventSubscriptions.entities); err != nil {
			return err
		}
		if err := loadBucket(tx, executionsBucket, &ctx.executions.entities); err != nil {
			return err
		}
		if err := loadBucket(tx, jobsBucket, &ctx.jobs.entities); err != nil {
			return err
		}
		if err := loadBucket(tx, processDefinitionsBucket, &ctx.processDefinitions.entities); err != nil {
			return err
		}

		var sequences snapshotSequences
		if b := tx.Bucket(sequencesBucket); b != nil {
			if err := json.Unmarshal(b.Get(sequencesBucket), &sequences); err != nil {
				return fmt.Errorf("failed to load snapshot sequences: %v", err)
			}
		}

		ctx.deployments.id = sequences.Deployments
		ctx.eventSubscriptions.id = sequences.EventSubscriptions
		ctx.executions.id = sequences.Executions
		ctx.jobs.id = sequences.Jobs
		ctx.processDefinitions.id = sequences.ProcessDefinitions
		return nil
	})
}

// saveSnapshot replaces the content of the snapshot file with the entities of a context.
func saveSnapshot(db *bbolt.DB, ctx *memContext) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if err := saveBucket(tx, deploymentsBucket, ctx.deployments.entities); err != nil {
			return err
		}
		if err := saveBucket(tx, eventSubscriptionsBucket, ctx.eventSubscriptions.entities); err != nil {
			return err
		}
		if err := saveBucket(tx, executionsBucket, ctx.executions.entities); err != nil {
			return err
		}
		if err := saveBucket(tx, jobsBucket, ctx.jobs.entities); err != nil {
			return err
		}
		if err := saveBucket(tx, processDefinitionsBucket, ctx.processDefinitions.entities); err != nil {
			return err
		}

		sequences, err := json.Marshal(snapshotSequences{
			Deployments:        ctx.deployments.id,
			EventSubscriptions: ctx.eventSubscriptions.id,
			Executions:         ctx.executions.id,
			Jobs:               ctx.jobs.id,
			ProcessDefinitions: ctx.processDefinitions.id,
		})
		if err != nil {
			return err
		}

		b, err := tx.CreateBucketIfNotExists(sequencesBucket)
		if err != nil {
			return err
		}
		return b.Put(sequencesBucket, sequences)
	})
}

func loadBucket[T any](tx *bbolt.Tx, name []byte, entities *[]T) error {
	b := tx.Bucket(name)
	if b == nil {
		return nil
	}

	return b.ForEach(func(k, v []byte) error {
		var entity T
		if err := json.Unmarshal(v, &entity); err != nil {
			return fmt.Errorf("failed to load snapshot entity %s/%x: %v", name, k, err)
		}
		*entities = append(*entities, entity)
		return nil
	})
}

func saveBucket[T any](tx *bbolt.Tx, name []byte, entities []T) error {
	if tx.Bucket(name) != nil {
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
	}

	b, err := tx.CreateBucket(name)
	if err != nil {
		return err
	}

	for i, entity := range entities {
		v, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("failed to save snapshot entity %s/%d: %v", name, i, err)
		}
		if err := b.Put(snapshotKey(i), v); err != nil {
			return err
		}
	}
	return nil
}

// snapshotKey returns a big-endian key, which preserves the order of the entities.
func snapshotKey(i int) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(i))
}
