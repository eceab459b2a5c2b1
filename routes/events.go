package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventapi/middlewares"
	"eventapi/models"
)

// eventView is the wire shape of one event. Date is either YYYY-MM-DD (list
// endpoint) or YYYY-MM-DDT00:00:00 (today and by-id); clients depend on both.
type eventView struct {
	ID    int64  `json:"id"`
	Event string `json:"event"`
	Date  string `json:"date"`
}

func plainView(e models.Event) eventView {
	return eventView{ID: e.ID, Event: e.Name, Date: models.FormatDate(e.Date)}
}

func timestampView(e models.Event) eventView {
	return eventView{ID: e.ID, Event: e.Name, Date: models.FormatTimestamp(e.Date)}
}

func views(events []models.Event, view func(models.Event) eventView) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, view(e))
	}
	return out
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": msgEventNotFound})
}

func storeFailure(c *gin.Context, err error, message string) {
	middlewares.Logger(c).Error().Err(err).Str("route", c.FullPath()).Msg("store operation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"message": message})
}

func badRequest(c *gin.Context, err error) {
	if fields, ok := fieldMessages(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"message": msgBadRequest})
}

// GET /event/
// Both start_time and end_time: range query, empty result is a 404.
// Otherwise every event.
func (d *deps) getEvents(c *gin.Context) {
	var q listEventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	if q.StartTime != "" && q.EndTime != "" {
		start, err := models.ParseDate(q.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": gin.H{"start_time": msgStartInvalid}})
			return
		}
		end, err := models.ParseDate(q.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": gin.H{"end_time": msgEndInvalid}})
			return
		}

		events, err := d.events.GetByDateRange(start, end)
		if err != nil {
			storeFailure(c, err, "Could not fetch events. Try again later.")
			return
		}
		if len(events) == 0 {
			notFound(c)
			return
		}
		c.JSON(http.StatusOK, views(events, plainView))
		return
	}

	events, err := d.events.GetAll()
	if err != nil {
		storeFailure(c, err, "Could not fetch events. Try again later.")
		return
	}
	c.JSON(http.StatusOK, views(events, plainView))
}

// POST /event/
func (d *deps) createEvent(c *gin.Context) {
	var in createEventInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err)
		return
	}
	date, err := models.ParseDate(in.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": gin.H{"date": msgDateRequired}})
		return
	}

	event := models.Event{Name: in.Event, Date: date}
	if err := d.events.Create(&event); err != nil {
		storeFailure(c, err, "Could not create event. Try again later.")
		return
	}

	d.inv.PurgeEventsList(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"message": "The event has been added!",
		"event":   event.Name,
		"date":    models.FormatDate(event.Date),
	})
}

// GET /event/today
// Zero matches is an empty list, not a 404.
func (d *deps) getTodayEvents(c *gin.Context) {
	today := models.DateOf(d.now())
	events, err := d.events.GetByDateRange(today, today)
	if err != nil {
		storeFailure(c, err, "Could not fetch events. Try again later.")
		return
	}
	c.JSON(http.StatusOK, views(events, timestampView))
}

// GET /event/:event_id
func (d *deps) getEvent(c *gin.Context) {
	id, ok := parseEventID(c.Param("event_id"))
	if !ok {
		notFound(c)
		return
	}

	event, err := d.events.GetByID(id)
	if errors.Is(err, models.ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		storeFailure(c, err, "Could not fetch event. Try again later.")
		return
	}
	c.JSON(http.StatusOK, timestampView(event))
}

// DELETE /event/:event_id
func (d *deps) deleteEvent(c *gin.Context) {
	id, ok := parseEventID(c.Param("event_id"))
	if !ok {
		notFound(c)
		return
	}

	err := d.events.Delete(id)
	if errors.Is(err, models.ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		storeFailure(c, err, "Could not delete the event.")
		return
	}

	ctx := c.Request.Context()
	d.inv.PurgeEventsList(ctx)
	d.inv.PurgeEventItem(ctx, id)

	c.JSON(http.StatusOK, gin.H{"message": "The event has been deleted!"})
}
