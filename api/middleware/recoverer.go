package middleware

import (
	"fmt"
	"net/http"

	"github.com/jackvaisey/user-service/api/responses"
	svcerrors "github.com/jackvaisey/user-service/pkg/errors"
	"github.com/jackvaisey/user-service/pkg/logger"
)

func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						logg.Error(logg.WithField(ctx, "panic", rec), "panic recovered", err)
					}
					responses.WriteError(ctx, logg, w, svcerrors.Wrap(svcerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
