package handlers

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// selectionValidator returns the shared validator. Field names in messages
// follow the json tags.
func selectionValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

// validateSignals checks the wire selection and parses it.
func validateSignals(signals models.Signals) (models.Selection, error) {
	svc := selectionValidator()
	if err := svc.validate.Struct(signals); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.Selection{}, errors.ValidationWrap(err, fe.Translate(svc.translator)).WithField(fe.Field())
		}
		return models.Selection{}, errors.ValidationWrap(err, "invalid selection")
	}

	sel, err := signals.Selection()
	if err != nil {
		return models.Selection{}, errors.ValidationWrap(err, "invalid date range")
	}
	return sel, nil
}

// bindSelection reads the selection from query parameters. Missing
// parameters fall back to the dashboard defaults.
func bindSelection(r *http.Request, defaults models.Signals) (models.Selection, error) {
	q := r.URL.Query()
	signals := models.Signals{
		Category:  queryOr(q.Get("category"), defaults.Category),
		Region:    queryOr(q.Get("region"), defaults.Region),
		ChartType: queryOr(q.Get("chart_type"), defaults.ChartType),
		StartDate: queryOr(q.Get("start"), defaults.StartDate),
		EndDate:   queryOr(q.Get("end"), defaults.EndDate),
	}
	return validateSignals(signals)
}

func queryOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// parseChanged parses a comma separated list of changed inputs. An empty
// list means every view.
func parseChanged(raw string) ([]services.Input, error) {
	var changed []services.Input
	for name := range strings.SplitSeq(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		inputs, ok := services.ParseInput(name)
		if !ok {
			return nil, errors.BadRequest("unknown input: " + name).WithField("changed")
		}
		changed = append(changed, inputs...)
	}
	return changed, nil
}

// viewError maps a view computation error onto the HTTP error taxonomy.
func viewError(err error) *errors.AppError {
	var empty *services.EmptySelectionError
	switch {
	case stderrors.As(err, &empty):
		return errors.NoData(err, "no data for this selection").WithField(empty.Field)
	case stderrors.Is(err, services.ErrInvalidChartType):
		return errors.ValidationWrap(err, "chart type must be bar or pie").WithField("chart_type")
	case stderrors.Is(err, services.ErrUnknownView):
		return errors.NotFound(err.Error())
	default:
		return errors.AsAppError(err)
	}
}

func defaultSignals(a *services.Aggregator) models.Signals {
	return models.NewSignals(a.Store().DefaultSelection())
}
