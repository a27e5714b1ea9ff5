package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamvault_files_deleted_total",
		Help: "File rows removed by the deletion engine.",
	})

	FoldersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamvault_folders_deleted_total",
		Help: "Folder rows removed by the deletion engine.",
	})

	StoreObjectsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamvault_store_objects_deleted_total",
		Help: "Object-store payloads removed by the deletion engine.",
	})

	DeletionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamvault_deletion_failures_total",
		Help: "Deletion requests that terminated in a failure state.",
	}, []string{"stage"})

	Inconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamvault_deletion_inconsistencies_total",
		Help: "Detected cross-store inconsistencies requiring operator remediation.",
	})
)
