package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/vision"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Print the faces found in each image",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		det, err := newDetector()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "IMAGE\tFACES\tBOXES")
		fmt.Fprintln(w, "-----\t-----\t-----")
		for _, path := range args {
			img, err := loadImage(path)
			if err != nil {
				return err
			}
			boxes, err := det.Detect(img.Image)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(w, "%s\t%d\t%v\n", path, len(boxes), boxes)
		}
		return w.Flush()
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <image>",
	Short: "Print the descriptor of the single face in an image as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, box, err := describeFile(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"box":        box,
			"length":     len(desc),
			"descriptor": desc,
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <image-a> <image-b>",
	Short: "Report the distance between the faces in two images",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := describeFile(args[0])
		if err != nil {
			return err
		}
		b, _, err := describeFile(args[1])
		if err != nil {
			return err
		}
		if len(a) != len(b) {
			return matching.ErrDimensionMismatch
		}
		d := matching.Distance(a, b)

		threshold := cfg.Matching.Threshold
		fmt.Printf("distance:   %.4f\n", d)
		fmt.Printf("threshold:  %.4f\n", threshold)
		fmt.Printf("confidence: %.4f\n", matching.Confidence(d, threshold))
		fmt.Printf("same face:  %t\n", d <= threshold)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd, describeCmd, compareCmd)
}

var (
	runtimeReady bool
	detector     vision.Detector
)

// ensureRuntime loads ONNX Runtime when the configured detector needs it.
func ensureRuntime() error {
	if runtimeReady || cfg.Vision.Detector != "retinaface" {
		return nil
	}
	if err := vision.InitRuntime(cfg.Vision.ONNXLibrary); err != nil {
		return err
	}
	runtimeReady = true
	return nil
}

// newDetector builds the configured detector once per process.
func newDetector() (vision.Detector, error) {
	if detector != nil {
		return detector, nil
	}
	if err := ensureRuntime(); err != nil {
		return nil, err
	}
	det, err := vision.NewDetector(cfg.Vision)
	if err != nil {
		return nil, err
	}
	detector = det
	return det, nil
}

func loadImage(path string) (*vision.Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := vision.DecodeBytes(data, vision.Limits{MaxPixels: cfg.Vision.MaxImagePixels})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func describeFile(path string) ([]float32, vision.BoundingBox, error) {
	det, err := newDetector()
	if err != nil {
		return nil, vision.BoundingBox{}, err
	}
	ext, err := vision.NewExtractorFromConfig(cfg.Vision)
	if err != nil {
		return nil, vision.BoundingBox{}, err
	}

	img, err := loadImage(path)
	if err != nil {
		return nil, vision.BoundingBox{}, err
	}
	boxes, err := det.Detect(img.Image)
	if err != nil {
		return nil, vision.BoundingBox{}, fmt.Errorf("%s: %w", path, err)
	}
	box, err := vision.SingleFace(boxes)
	if err != nil {
		return nil, vision.BoundingBox{}, fmt.Errorf("%s: %w", path, err)
	}
	desc, err := ext.Extract(img.Image, box)
	if err != nil {
		return nil, vision.BoundingBox{}, fmt.Errorf("%s: %w", path, err)
	}
	return desc, box, nil
}
