package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/pipeline"
	"fatwa-rag-go/pkg/kafka"
	"fatwa-rag-go/pkg/storage"
	"fatwa-rag-go/pkg/tasks"

	"github.com/spf13/cobra"
)

var (
	uploadLang   string
	uploadObject string
	uploadNoTask bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a Q&A dump to object storage and enqueue an ingest task",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadLang, "lang", "", "dump language (en or ar)")
	uploadCmd.Flags().StringVar(&uploadObject, "object", "", "object name (default dumps/<lang>/<file name>)")
	uploadCmd.Flags().BoolVar(&uploadNoTask, "no-task", false, "only upload, do not enqueue")
	_ = uploadCmd.MarkFlagRequired("lang")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	lang, err := model.ParseLanguage(uploadLang)
	if err != nil {
		return err
	}
	path := args[0]
	if _, err := pipeline.LoadDumpFile(path); err != nil {
		return err
	}

	object := uploadObject
	if object == "" {
		object = fmt.Sprintf("dumps/%s/%s", lang, filepath.Base(path))
	}

	ctx := cmd.Context()
	client, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := storage.NewObjectStore(client, cfg.MinIO.BucketName).Put(ctx, object, f, info.Size()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s/%s\n", path, cfg.MinIO.BucketName, object)

	if uploadNoTask {
		return nil
	}
	kafka.InitProducer(cfg.Kafka)
	defer kafka.CloseProducer()
	if err := kafka.ProduceIngestTask(ctx, tasks.IngestTask{ObjectName: object, Language: lang.String()}); err != nil {
		return fmt.Errorf("failed to enqueue ingest task: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enqueued ingest task on topic %s\n", cfg.Kafka.Topic)
	return nil
}
