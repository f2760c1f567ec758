package task

import "github.com/c360/sensorweave/component"

// Register adds all inference task factories to the registry.
func Register(registry *component.Registry) error {
	registrations := []component.RegistrationConfig{
		{
			Name:        "classifier",
			Factory:     CreateClassifier,
			Type:        component.TypeTask,
			Medium:      "video",
			Description: "Image classification over camera frames",
			Version:     "1.0.0",
		},
		{
			Name:        "detector",
			Factory:     CreateDetector,
			Type:        component.TypeTask,
			Medium:      "video",
			Description: "Object detection over camera frames",
			Version:     "1.0.0",
		},
		{
			Name:        "segmenter",
			Factory:     CreateSegmenter,
			Type:        component.TypeTask,
			Medium:      "video",
			Description: "Semantic segmentation over camera frames",
			Version:     "1.0.0",
		},
		{
			Name:        "text-classifier",
			Factory:     CreateTextClassifier,
			Type:        component.TypeTask,
			Medium:      "text",
			Description: "Text classification over string inputs",
			Version:     "1.0.0",
		},
		{
			Name:        "question-answerer",
			Factory:     CreateQuestionAnswerer,
			Type:        component.TypeTask,
			Medium:      "text",
			Description: "Extractive question answering over a fixed context document",
			Version:     "1.0.0",
		},
	}

	for _, reg := range registrations {
		if err := registry.RegisterWithConfig(reg); err != nil {
			return err
		}
	}
	return nil
}
