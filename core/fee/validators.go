package fee

import (
	"github.com/go-playground/validator/v10"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core"
)

var (
	feeKindTag  = "feekind"
	feeKindText = "invalid exception kind"

	adjModeTag  = "adjmode"
	adjModeText = "invalid adjustment mode"

	payMethodTag  = "paymethod"
	payMethodText = "invalid payment method"

	gradeOrClassText = "one of grades or classes is required"
	dateWindowText   = "end date cannot precede start date"
)

// register custom validators
func init() {
	_ = core.Validate.RegisterValidation(feeKindTag, feeKindValidation)
	core.RegisterCustomTranslation(feeKindTag, feeKindText)

	_ = core.Validate.RegisterValidation(adjModeTag, adjModeValidation)
	core.RegisterCustomTranslation(adjModeTag, adjModeText)

	_ = core.Validate.RegisterValidation(payMethodTag, payMethodValidation)
	core.RegisterCustomTranslation(payMethodTag, payMethodText)
}

// Custom Validators

func feeKindValidation(fl validator.FieldLevel) bool {
	switch ExceptionKind(fl.Field().String()) {
	case KindWaiver, KindScholarship, KindDiscount, KindAdjustment:
		return true
	}
	return false
}

func adjModeValidation(fl validator.FieldLevel) bool {
	switch AdjustmentMode(fl.Field().String()) {
	case ModePercentage, ModeFixedAmount:
		return true
	}
	return false
}

func payMethodValidation(fl validator.FieldLevel) bool {
	switch PaymentMethod(fl.Field().String()) {
	case MethodCash, MethodBankTransfer, MethodMobileMoney, MethodCheck:
		return true
	}
	return false
}
