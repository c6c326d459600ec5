package echoapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/samkazadi/mahudhurio/core"
	"github.com/samkazadi/mahudhurio/core/attendance"
	"github.com/samkazadi/mahudhurio/core/user"
)

type attendanceApi struct {
	svc      attendance.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := attendanceApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	ag := g.Group("/attendance", jwt)

	// session endpoints; owned by teachers
	sg := ag.Group("/sessions", teacherMiddleware())
	sg.POST("", api.generateSession)
	sg.GET("/:id", api.sessionStats)
	sg.GET("/:id/qr", api.sessionQR)
	sg.DELETE("/:id", api.closeSession)

	// check-in endpoint; students only
	ag.POST("/scan", api.scan, studentMiddleware())

	// durable record endpoints
	rg := ag.Group("/records", teacherMiddleware())
	rg.POST("", api.createRecord)
	rg.GET("", api.queryRecords)
	rg.GET("/:id", api.retrieveRecord)
	rg.PUT("/:id", api.updateRecord)
	rg.DELETE("", api.destroyRecords, adminMiddleware())
}

// Handlers

func (api *attendanceApi) generateSession(ctx echo.Context) error {
	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	gen, err := api.svc.GenerateSession(data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "generating session")
	}
	return ctx.JSON(http.StatusCreated, gen)
}

func (api *attendanceApi) sessionStats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.svc.SessionStats(ctx.Param("id"), ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) sessionQR(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	size, _ := strconv.Atoi(ctx.QueryParam("size"))
	img, err := api.svc.SessionQR(ctx.Param("id"), ctxUsr, size)
	if err != nil {
		return err
	}
	return ctx.Blob(http.StatusOK, "image/png", img)
}

func (api *attendanceApi) closeSession(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.CloseSession(ctx.Param("id"), ctxUsr); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) scan(ctx echo.Context) error {
	var data attendance.ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.ProcessScan(data, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) createRecord(ctx echo.Context) error {
	var data attendance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.CreateRecord(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) queryRecords(ctx echo.Context) error {
	filter := new(attendance.RecordFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.FilterRecords(*filter)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	applyRecordOrdering(records, ordering.Orderings)
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) retrieveRecord(ctx echo.Context) error {
	rec, err := api.svc.GetRecord(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) updateRecord(ctx echo.Context) error {
	var data attendance.UpdateRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.UpdateRecordStatus(ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroyRecords(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.DeleteRecords(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting records")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// applyRecordOrdering sorts records in place on any supported ordering field.
// Repositories return records newest first; this only reorders the page.
func applyRecordOrdering(records []attendance.Record, orderings []core.DBOrdering) {
	for i := len(orderings) - 1; i >= 0; i-- {
		ord := orderings[i]
		var less func(a, b attendance.Record) bool
		switch ord.Field {
		case "created_at":
			less = func(a, b attendance.Record) bool { return a.CreatedAt.Before(b.CreatedAt) }
		case "status":
			less = func(a, b attendance.Record) bool { return a.Status < b.Status }
		case "subject_code":
			less = func(a, b attendance.Record) bool { return a.SubjectCode < b.SubjectCode }
		default:
			continue
		}
		sort.SliceStable(records, func(a, b int) bool {
			if ord.Ascending {
				return less(records[a], records[b])
			}
			return less(records[b], records[a])
		})
	}
}
