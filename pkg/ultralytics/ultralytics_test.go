package ultralytics

import (
	"context"
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestTrainArgs(t *testing.T) {
	c := NewTrainConfig(DefaultEpochs, DefaultImageSize, "cpu")
	require.Equal(t, []string{
		"detect",
		"train",
		"model=yolov8s.pt",
		"data=yolo_params.yaml",
		"epochs=15",
		"imgsz=640",
		"device=cpu",
		"single_cls=False",
		"mosaic=0.3",
		"mixup=0.1",
		"optimizer=AdamW",
		"lr0=0.001",
		"lrf=0.01",
		"momentum=0.937",
		"workers=2",
		"project=runs/detect",
		"name=train_full",
		"verbose=True",
	}, c.Args())

	c = NewTrainConfig(3, 320, "0")
	args := c.Args()
	require.Contains(t, args, "epochs=3")
	require.Contains(t, args, "imgsz=320")
	require.Contains(t, args, "device=0")
}

func TestTrainValidate(t *testing.T) {
	require.NoError(t, NewTrainConfig(1, 320, "cpu").Validate())
	require.Error(t, NewTrainConfig(0, 640, "cpu").Validate())
	require.Error(t, NewTrainConfig(15, 100, "cpu").Validate())
}

func TestExportArgs(t *testing.T) {
	require.Equal(t, []string{"export", "model=runs/detect/train/weights/best.pt", "format=onnx", "imgsz=640"},
		ExportArgs("runs/detect/train/weights/best.pt", 640))
}

func TestDeviceFromSMI(t *testing.T) {
	require.Equal(t, "0", deviceFromSMI("GPU 0: NVIDIA GeForce RTX 3090 (UUID: GPU-1234)\n", nil))
	require.Equal(t, "cpu", deviceFromSMI("", errors.New("executable file not found in $PATH")))
	require.Equal(t, "cpu", deviceFromSMI("No devices were found\n", nil))
}

func TestProjectDir(t *testing.T) {
	r := NewRunner(logs.NewTestingLog(t), "/data/work")
	require.Equal(t, "/data/work/runs/detect", r.ProjectDir(NewTrainConfig(1, 640, "cpu")))
}

func TestTrainRejectsBadConfig(t *testing.T) {
	r := NewRunner(logs.NewTestingLog(t), t.TempDir())
	r.Executable = "this-program-does-not-exist"
	require.Error(t, r.Train(context.Background(), NewTrainConfig(0, 640, "cpu")))
	require.Error(t, r.Train(context.Background(), NewTrainConfig(1, 640, "cpu")))
}
