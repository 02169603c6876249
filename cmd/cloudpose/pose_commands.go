package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"cloudpose/internal/controller"
	"cloudpose/internal/imagefile"
)

func newPoseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pose <image>",
		Short: "Request pose keypoints for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := selectForRequest(cmd.Context(), ctx, args[0])
			if err != nil {
				return err
			}
			reqErr := ctrl.RequestPoseKeypoints(cmd.Context())
			state := ctrl.Snapshot()
			if reqErr != nil {
				return reportRequestError(cmd, ctx, state, reqErr)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, json.RawMessage(state.Pose.Raw))
			}
			renderPoseResult(cmd, state)
			return nil
		},
	}
}

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "annotate <image>",
		Short: "Request an annotated rendering of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := selectForRequest(cmd.Context(), ctx, args[0])
			if err != nil {
				return err
			}
			reqErr := ctrl.RequestAnnotatedImage(cmd.Context())
			state := ctrl.Snapshot()
			if reqErr != nil {
				return reportRequestError(cmd, ctx, state, reqErr)
			}

			summary := annotateSummary{FileName: state.Image.Name, HasImage: state.Annotated != ""}
			if summary.HasImage {
				data, err := imagefile.DecodeDataURL(state.Annotated)
				if err != nil {
					return fmt.Errorf("decode annotated image: %w", err)
				}
				summary.Bytes = len(data)
				if meta, err := imagefile.DescribeBytes(data); err == nil {
					summary.Width, summary.Height = meta.Width, meta.Height
				}
				if outPath != "" {
					target, err := writeAnnotated(outPath, data)
					if err != nil {
						return err
					}
					summary.Output = target
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}
			renderAnnotateSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the annotated JPEG to this path")
	return cmd
}

type annotateSummary struct {
	FileName string `json:"file_name"`
	HasImage bool   `json:"has_image"`
	Bytes    int    `json:"bytes,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Output   string `json:"output,omitempty"`
}

// selectForRequest opens path and hands it to a fresh controller, waiting for
// the preview so a read failure surfaces before any request is sent.
func selectForRequest(runCtx context.Context, ctx *commandContext, path string) (*controller.Controller, error) {
	ctrl, _, err := ctx.newController(true)
	if err != nil {
		return nil, err
	}
	img, err := imagefile.Open(path)
	if err != nil {
		return nil, err
	}
	ctrl.SelectImage(runCtx, img)
	ctrl.Wait()
	return ctrl, nil
}

func reportRequestError(cmd *cobra.Command, ctx *commandContext, state controller.State, err error) error {
	if ctx.jsonOutput() {
		if encErr := writeJSON(cmd, map[string]string{"error": state.Error}); encErr != nil {
			return encErr
		}
		return err
	}
	printStatus(cmd, "Request", statusError, state.Error)
	return err
}

func writeAnnotated(path string, data []byte) (string, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write annotated image: %w", err)
	}
	return target, nil
}

func renderPoseResult(cmd *cobra.Command, state controller.State) {
	result := state.Pose
	out := cmd.OutOrStdout()
	printStatus(cmd, "Image", statusInfo, state.Image.Name)
	printStatus(cmd, "People", statusOK, strconv.Itoa(result.Count))
	printStatus(cmd, "Processing time", statusInfo, result.ProcessingTime)

	if len(result.Boxes) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Boxes))
	for i, box := range result.Boxes {
		keypoints := 0
		if i < len(result.Keypoints) {
			keypoints = len(result.Keypoints[i])
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatFloat(box.X),
			formatFloat(box.Y),
			formatFloat(box.Width),
			formatFloat(box.Height),
			strconv.FormatFloat(box.Probability, 'f', 2, 64),
			strconv.Itoa(keypoints),
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   "Detections",
		headers: []string{"#", "X", "Y", "Width", "Height", "Probability", "Keypoints"},
		aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	}, rows))
}

func renderAnnotateSummary(cmd *cobra.Command, summary annotateSummary) {
	printStatus(cmd, "Image", statusInfo, summary.FileName)
	if !summary.HasImage {
		printStatus(cmd, "Annotated", statusWarn, "service returned no image")
		return
	}
	detail := fmt.Sprintf("%d bytes", summary.Bytes)
	if summary.Width > 0 {
		detail += fmt.Sprintf(", %dx%d", summary.Width, summary.Height)
	}
	printStatus(cmd, "Annotated", statusOK, detail)
	if summary.Output != "" {
		printStatus(cmd, "Saved", statusOK, summary.Output)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
