/*
go-vidcount counts the unique objects appearing in a video.  Frames are
sampled from a video file or stream at a fixed rate, objects are detected in
each sampled frame with a YOLOv8 ONNX model run through OpenCV's DNN module
and a centroid tracker associates detections across frames so each physical
object is counted once.

The sampling, tracking and session orchestration live in the sampler, tracker
and session packages and have no dependency on OpenCV.  This package provides
the OpenCV backed Detector used by them.

See example code and usage in the examples subdirectory.
*/
package vidcount
