// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestTask asks the pipeline to import one Q&A dump object into a language index.
type IngestTask struct {
	ObjectName string `json:"object_name"`
	Language   string `json:"language"`
}
