package pipeline

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/features"
	"github.com/sells-group/churn-cli/internal/model"
)

// ErrPrediction is matched by every failure raised inside the predictor.
var ErrPrediction = eris.New("pipeline: prediction failed")

// PredictionError wraps a predictor failure. It matches ErrPrediction and
// unwraps to the underlying cause.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPrediction.
func (e *PredictionError) Is(target error) bool {
	return target == ErrPrediction
}

// Categorize maps a pipeline error onto the run history error category.
func Categorize(err error) model.ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, dataset.ErrDecode):
		return model.ErrorCategoryDecode
	case errors.Is(err, dataset.ErrEmptyOrUnreadable):
		return model.ErrorCategoryUnreadable
	case errors.Is(err, dataset.ErrNoRows):
		return model.ErrorCategoryNoRows
	case errors.Is(err, features.ErrMissingColumn):
		return model.ErrorCategoryMissingColumn
	case errors.Is(err, ErrPrediction):
		return model.ErrorCategoryPrediction
	default:
		return model.ErrorCategoryInternal
	}
}

// UserMessage renders err as the message shown to the person who uploaded the file.
func UserMessage(err error) string {
	switch Categorize(err) {
	case "":
		return ""
	case model.ErrorCategoryUnreadable:
		return "The file appears to be empty or unreadable. Check the format and try again."
	case model.ErrorCategoryNoRows:
		return "The file has a header but no customer rows. Add data rows and try again."
	case model.ErrorCategoryDecode:
		return "The file is not valid UTF-8 text. Save it as UTF-8 CSV and try again."
	case model.ErrorCategoryMissingColumn:
		col, _ := features.AsMissingColumn(err)
		return fmt.Sprintf("Missing required column: %q", col)
	case model.ErrorCategoryPrediction:
		return "The model could not score this file. Check that the feature columns hold valid values."
	default:
		return "An unexpected error occurred while processing the file."
	}
}
